package domain

import "errors"

// ErrNotFound is returned by repositories when no row matches.
var ErrNotFound = errors.New("not found")

// Messages returned to API clients by the mutations.
const (
	MsgEmailExists      = "Email already exists"
	MsgInvalidPhone     = "Invalid phone format"
	MsgInvalidEmail     = "Invalid email format"
	MsgNameRequired     = "Name is required"
	MsgNameTooLong      = "Name must be at most 100 characters"
	MsgCustomerCreated  = "Customer created successfully"
	MsgPriceNotPositive = "Price must be positive"
	MsgNegativeStock    = "Stock cannot be negative"
	MsgProductCreated   = "Product created successfully"
	MsgCustomerNotFound = "Customer not found"
	MsgNoProducts       = "At least one product must be selected"
	MsgProductsNotFound = "One or more products not found"
	MsgOrderCreated     = "Order created successfully"
)

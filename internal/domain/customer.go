package domain

import (
	"strings"
	"time"
)

// Customer is a person who can place orders
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewCustomer creates an unsaved customer. A blank phone is stored as null.
func NewCustomer(name, email string, phone *string) Customer {
	now := time.Now().UTC()
	return Customer{
		Name:      strings.TrimSpace(name),
		Email:     strings.TrimSpace(email),
		Phone:     normalizePhone(phone),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// PhoneValue returns the phone number or an empty string.
func (c Customer) PhoneValue() string {
	if c.Phone == nil {
		return ""
	}
	return *c.Phone
}

func normalizePhone(phone *string) *string {
	if phone == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*phone)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// CustomerInput carries the fields accepted when creating a customer
type CustomerInput struct {
	Name  string  `json:"name" validate:"required,max=100"`
	Email string  `json:"email" validate:"required,email,max=254"`
	Phone *string `json:"phone,omitempty" validate:"omitempty,phone"`
}

package domain

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var phonePattern = regexp.MustCompile(`^\+?1?\d{9,15}$|^\d{3}-\d{3}-\d{4}$`)

// ValidPhone reports whether phone is an accepted phone number format.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return ValidPhone(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// Validate checks in and returns user facing messages, one per failed field.
func (in CustomerInput) Validate() []string {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if in.Phone != nil {
		trimmed := strings.TrimSpace(*in.Phone)
		in.Phone = &trimmed
		if trimmed == "" {
			in.Phone = nil
		}
	}
	return messages(validate.Struct(in), map[string]func(tag string) string{
		"Name": func(tag string) string {
			if tag == "max" {
				return MsgNameTooLong
			}
			return MsgNameRequired
		},
		"Email": func(string) string { return MsgInvalidEmail },
		"Phone": func(string) string { return MsgInvalidPhone },
	})
}

// Validate checks in and returns user facing messages.
func (in ProductInput) Validate() []string {
	msgs := messages(validate.Struct(in), map[string]func(tag string) string{
		"Name": func(tag string) string {
			if tag == "max" {
				return MsgNameTooLong
			}
			return MsgNameRequired
		},
	})
	if !in.Price.IsPositive() {
		msgs = append(msgs, MsgPriceNotPositive)
	}
	if in.StockOrDefault() < 0 {
		msgs = append(msgs, MsgNegativeStock)
	}
	return msgs
}

func messages(err error, byField map[string]func(tag string) string) []string {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	var out []string
	for _, fe := range verrs {
		if msg, ok := byField[fe.StructField()]; ok {
			out = append(out, msg(fe.Tag()))
			continue
		}
		out = append(out, fe.Error())
	}
	return out
}

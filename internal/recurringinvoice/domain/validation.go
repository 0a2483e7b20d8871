package domain

import (
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// Validate checks the blueprint before it is stored or used to bill.
func (b Body) Validate() error {
	if err := validate.Struct(b); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTemplateBody, err)
	}
	return nil
}

func (r CreateRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return r.InvoiceTemplate.Validate()
}

func (r UpdateRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if r.InvoiceTemplate != nil {
		return r.InvoiceTemplate.Validate()
	}
	return nil
}

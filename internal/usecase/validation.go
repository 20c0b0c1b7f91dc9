package usecase

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// LeadInput is the dashboard's add/edit lead form.
type LeadInput struct {
	Name          string `json:"name" validate:"required,max=200"`
	Email         string `json:"email" validate:"omitempty,email"`
	Phone         string `json:"phone" validate:"omitempty,max=32"`
	Status        string `json:"status" validate:"omitempty,oneof=hot warm cold uninterested qualified unqualified called texted interested not_interested"`
	LeadType      string `json:"lead_type" validate:"omitempty,oneof=inbound outbound"`
	SourceChannel string `json:"source_channel" validate:"omitempty,oneof=cold_call inbound_call web_form email_campaign manual other"`
	CallResult    string `json:"call_result" validate:"omitempty,oneof=appointment_booked unsuccessful"`
	Qualified     bool   `json:"qualified"`
}

var formValidator = newFormValidator()

func newFormValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func ValidateLeadInput(input LeadInput) []*ValidationError {
	var errs []*ValidationError

	if strings.TrimSpace(input.Name) == "" {
		errs = append(errs, &ValidationError{"name", "is required"})
	}

	err := formValidator.Struct(input)
	if err == nil {
		return errs
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return append(errs, &ValidationError{"", err.Error()})
	}
	for _, fe := range fieldErrs {
		if fe.Field() == "name" && fe.Tag() == "required" {
			continue
		}
		errs = append(errs, &ValidationError{fe.Field(), describe(fe)})
	}
	return errs
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "is invalid"
	case "max":
		return fmt.Sprintf("must not exceed %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return "is invalid"
}

func joinValidation(errs []*ValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	all := make([]error, len(errs))
	for i, e := range errs {
		all[i] = e
	}
	return errors.Join(all...)
}

package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/moibraahim/gymnation-task/internal/llm"
	"github.com/moibraahim/gymnation-task/internal/models"
)

type createArgs struct {
	ServiceType     string `json:"service_type" validate:"required"`
	Date            string `json:"date" validate:"required,datetime=2006-01-02"`
	Time            string `json:"time" validate:"required,datetime=15:04"`
	CustomerName    string `json:"customer_name" validate:"required"`
	CustomerEmail   string `json:"customer_email" validate:"required,email"`
	DurationMinutes *int   `json:"duration_minutes" validate:"omitempty,min=1,max=480"`
	Notes           string `json:"notes"`
}

type updateArgs struct {
	BookingID       string  `json:"booking_id" validate:"required"`
	Date            string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Time            string  `json:"time" validate:"omitempty,datetime=15:04"`
	DurationMinutes *int    `json:"duration_minutes" validate:"omitempty,min=1,max=480"`
	Status          string  `json:"status" validate:"omitempty,oneof=confirmed cancelled rescheduled completed"`
	Notes           *string `json:"notes"`
}

type getArgs struct {
	BookingID     string `json:"booking_id"`
	CustomerEmail string `json:"customer_email" validate:"omitempty,email"`
	Date          string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Status        string `json:"status" validate:"omitempty,oneof=all confirmed cancelled rescheduled completed"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeArgs converts untyped model arguments into dst and validates it.
// Every failure wraps models.ErrInvalidArguments.
func (d *Dispatcher) decodeArgs(call llm.ToolCall, dst any) error {
	if call.Arguments == nil {
		if strings.TrimSpace(call.RawArguments) != "" {
			return fmt.Errorf("%w: arguments are not a valid JSON object", models.ErrInvalidArguments)
		}
		call.Arguments = map[string]any{}
	}

	data, err := json.Marshal(call.Arguments)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidArguments, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return fmt.Errorf("%w: %s must be %s", models.ErrInvalidArguments, typeErr.Field, jsonKind(typeErr.Type))
		}
		return fmt.Errorf("%w: %v", models.ErrInvalidArguments, err)
	}

	trimStrings(dst)

	if err := d.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			problems := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				problems = append(problems, describeFieldError(fe))
			}
			return fmt.Errorf("%w: %s", models.ErrInvalidArguments, strings.Join(problems, "; "))
		}
		return fmt.Errorf("%w: %v", models.ErrInvalidArguments, err)
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "datetime":
		return fmt.Sprintf("%s must use the %s format", fe.Field(), humanLayout(fe.Param()))
	case "email":
		return fe.Field() + " must be a valid email address"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	}
	return fe.Field() + " is invalid"
}

func humanLayout(layout string) string {
	switch layout {
	case "2006-01-02":
		return "YYYY-MM-DD"
	case "15:04":
		return "HH:MM"
	}
	return layout
}

func jsonKind(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "a whole number"
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "a boolean"
	case reflect.Pointer:
		return jsonKind(t.Elem())
	}
	return "a " + t.Kind().String()
}

// trimStrings trims surrounding whitespace from every string field of the
// struct dst points to.
func trimStrings(dst any) {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return
	}
	v = v.Elem()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		switch {
		case field.Kind() == reflect.String && field.CanSet():
			field.SetString(strings.TrimSpace(field.String()))
		case field.Kind() == reflect.Pointer && !field.IsNil() && field.Elem().Kind() == reflect.String:
			field.Elem().SetString(strings.TrimSpace(field.Elem().String()))
		}
	}
}

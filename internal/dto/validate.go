package dto

import (
	"reflect"
	"regexp"
	"strings"

	"labcaja/internal/money"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

var fixed2Pattern = regexp.MustCompile(`^\d{1,10}\.\d{2}$`)

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0 and gt=0 work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	// money2 and the numeric tags see the float64 produced above, so the precision check
	// reads the original decimal from the parent struct.
	_ = validate.RegisterValidation("money2", func(fl validator.FieldLevel) bool {
		d, ok := fieldDecimal(fl)
		if !ok {
			return false
		}
		return money.HasAtMostTwoDecimals(d)
	})
	_ = validate.RegisterValidation("fixed2", func(fl validator.FieldLevel) bool {
		return fixed2Pattern.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

func fieldDecimal(fl validator.FieldLevel) (decimal.Decimal, bool) {
	parent := fl.Parent()
	for parent.Kind() == reflect.Ptr {
		parent = parent.Elem()
	}
	if parent.Kind() != reflect.Struct {
		return decimal.Zero, false
	}
	f := parent.FieldByName(fl.StructFieldName())
	if !f.IsValid() {
		return decimal.Zero, false
	}
	d, ok := f.Interface().(decimal.Decimal)
	return d, ok
}

// Validate runs the go-playground/validator tags of a request DTO.
func Validate(req interface{}) error {
	return validate.Struct(req)
}

// FieldErrors flattens validator errors into field → failed tag.
func FieldErrors(err error) map[string]string {
	fields := make(map[string]string)
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
	}
	return fields
}

package services

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ethpandaops/horizon-monitor/utils"
)

// PayloadValidator checks source payloads against their struct tags.
// big.Int values are validated as decimal strings, the uint256 tag restricts them to unsigned 256 bit values.
type PayloadValidator struct {
	validate *validator.Validate
}

func NewPayloadValidator() *PayloadValidator {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if val, ok := field.Interface().(big.Int); ok {
			return val.String()
		}
		return nil
	}, big.Int{})

	err := validate.RegisterValidation("uint256", func(fl validator.FieldLevel) bool {
		return utils.IsUint256(fl.Field().String())
	})
	if err != nil {
		panic(fmt.Sprintf("failed to register uint256 validation: %v", err))
	}

	return &PayloadValidator{
		validate: validate,
	}
}

// Validate returns a readable error listing every field that failed validation.
func (v *PayloadValidator) Validate(payload interface{}) error {
	if payload == nil || (reflect.ValueOf(payload).Kind() == reflect.Pointer && reflect.ValueOf(payload).IsNil()) {
		return fmt.Errorf("empty payload")
	}

	err := v.validate.Struct(payload)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	fields := make([]string, len(validationErrors))
	for i, ve := range validationErrors {
		if ve.Param() != "" {
			fields[i] = fmt.Sprintf("%v (%v=%v)", ve.Field(), ve.Tag(), ve.Param())
		} else {
			fields[i] = fmt.Sprintf("%v (%v)", ve.Field(), ve.Tag())
		}
	}
	return fmt.Errorf("invalid fields: %v", strings.Join(fields, ", "))
}

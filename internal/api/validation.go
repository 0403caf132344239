package api

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/ttacon/libphonenumber"

	"example.com/albaranes/internal/models"
	"example.com/albaranes/internal/services"
)

// RegisterValidators adds the domain binding rules to gin's validator
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected binding validator engine")
	}
	if err := v.RegisterValidation("unit", validUnit); err != nil {
		return errors.Wrap(err, "failed to register unit validator")
	}
	if err := v.RegisterValidation("phone", validPhone); err != nil {
		return errors.Wrap(err, "failed to register phone validator")
	}
	return nil
}

func validUnit(fl validator.FieldLevel) bool {
	return models.Unit(fl.Field().String()).Valid()
}

func validPhone(fl validator.FieldLevel) bool {
	num, err := libphonenumber.Parse(fl.Field().String(), services.DefaultPhoneRegion)
	if err != nil {
		return false
	}
	return libphonenumber.IsValidNumber(num)
}

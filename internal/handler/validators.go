package handler

import (
	"errors"
	"regexp"
	"sync"

	"recharge_desk/internal/model"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9 ()\-]{8,20}$`)

var registerOnce sync.Once

// RegisterValidators adds the domain binding tags (operator, txstatus, phone)
// to gin's validator engine
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("gin validator engine is not go-playground/validator")
			return
		}
		err = errors.Join(
			v.RegisterValidation("operator", func(fl validator.FieldLevel) bool {
				return model.Operator(fl.Field().String()).Valid()
			}),
			v.RegisterValidation("txstatus", func(fl validator.FieldLevel) bool {
				return model.Status(fl.Field().String()).Valid()
			}),
			v.RegisterValidation("phone", validPhone),
		)
	})
	return err
}

func validPhone(fl validator.FieldLevel) bool {
	phone := fl.Field().String()
	if !phonePattern.MatchString(phone) {
		return false
	}
	digits := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 8
}

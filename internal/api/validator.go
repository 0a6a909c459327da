package api

import (
	"net/http"

	"github.com/go-playground/validator/v10"
)

type requestValidator struct {
	validate *validator.Validate
}

func newValidator() *requestValidator {
	return &requestValidator{validate: validator.New()}
}

func (v *requestValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return NewCodedError(http.StatusBadRequest, err)
	}
	return nil
}

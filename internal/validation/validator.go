package validation

import (
	validatorv10 "github.com/go-playground/validator/v10"
)

// Tag reported when the register form's two passwords differ.
const tagPasswordsMatch = "passwords_match"

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// the two password fields of the register form must agree
	v.RegisterStructValidation(registerStructValidation, RegisterForm{})

	return v
}

func registerStructValidation(sl validatorv10.StructLevel) {
	form := sl.Current().Interface().(RegisterForm)
	if form.Password != form.ConfirmPassword {
		sl.ReportError(form.ConfirmPassword, "confirm_password", "ConfirmPassword", tagPasswordsMatch, "")
	}
}

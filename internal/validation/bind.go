package validation

import (
	"errors"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
)

// User-facing texts for rejected forms.
const (
	MsgPasswordsMismatch = "Passwords do not match"
	MsgRequiredFields    = "Username and password are required"
	MsgInvalidForm       = "Invalid form submission"
)

// BindAndValidate binds the form body into out and runs validation. Unlike
// JSON endpoints the caller renders the failure itself, usually with Message.
func BindAndValidate(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	if err := c.ShouldBind(out); err != nil {
		return err
	}
	return v.Struct(out)
}

// Message turns a BindAndValidate error into text for the form.
func Message(err error) string {
	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) {
		return MsgInvalidForm
	}
	for _, fe := range ve {
		if fe.Tag() == tagPasswordsMatch {
			return MsgPasswordsMismatch
		}
	}
	return MsgRequiredFields
}

// Fields maps each failing field to its validator tag, for logging.
func Fields(err error) map[string]string {
	out := map[string]string{}
	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fe.StructNamespace()] = fe.Tag()
		}
	} else if err != nil {
		out["error"] = err.Error()
	}
	return out
}

package utils

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	english := en.New()
	translator, _ = ut.New(english, english).GetTranslator("en")

	validate = validator.New()
	_ = entranslations.RegisterDefaultTranslations(validate, translator)

	// Gin runs the binding tags through its own validator instance; register
	// the same translations there so its errors format identically.
	if engine, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = entranslations.RegisterDefaultTranslations(engine, translator)
	}
}

// Validate performs validation on a struct.
func Validate(s interface{}) error {
	return validate.Struct(s)
}

// FormatValidationError flattens validation errors into one readable,
// field-by-field message.
func FormatValidationError(err error) string {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		messages := make([]string, 0, len(errs))
		for _, e := range errs {
			messages = append(messages, e.Translate(translator))
		}
		return strings.Join(messages, ", ")
	}
	return err.Error()
}

// BindAndValidate binds the request body to a struct and validates it.
// If binding or validation fails, it sends a BadRequest response and
// returns false.
func BindAndValidate(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		BadRequest(c, "Invalid request payload: "+FormatValidationError(err))
		return false
	}
	if err := Validate(obj); err != nil {
		BadRequest(c, "Validation failed: "+FormatValidationError(err))
		return false
	}
	return true
}

package scriptmeasure

import (
	stdErrors "errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/reglet-dev/scriptmeasure/domain/entities"
	"github.com/reglet-dev/scriptmeasure/domain/errors"
)

// dottedIdent matches class names such as "Measure" or "widgets.Clock".
var dottedIdent = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*(\.[A-Za-z_$][A-Za-z0-9_$]*)*$`)

// validate is a package-level singleton for better performance.
// Creating a new validator on each call is expensive; reusing is recommended.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("dottedident", func(fl validator.FieldLevel) bool {
		return dottedIdent.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// ValidateConfig checks a BridgeConfig.
func ValidateConfig(cfg entities.BridgeConfig) error {
	return validateStruct(cfg)
}

// ValidateOptions checks the options of one measure.
func ValidateOptions(opts entities.MeasureOptions) error {
	return validateStruct(opts)
}

// ValidateSkin checks a parsed skin document.
func ValidateSkin(skin *entities.Skin) error {
	if skin == nil {
		return &errors.ConfigError{Err: stdErrors.New("skin is nil")}
	}
	return validateStruct(skin)
}

// validateStruct runs the validator and reports the first failing field as
// a ConfigError.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if stdErrors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &errors.ConfigError{
			Field: fe.Namespace(),
			Err:   fmt.Errorf("failed on '%s' (value %v): %w", fe.Tag(), fe.Value(), err),
		}
	}
	return &errors.ConfigError{Err: err}
}

package apiserver

import (
	"errors"
	"fmt"
	"sync"

	"github.com/alchemorsel/kitchen/internal/domain/theme"
	apperrors "github.com/alchemorsel/kitchen/pkg/errors"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// registerValidators adds the theme tags to gin's validator engine
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("theme_preference", func(fl validator.FieldLevel) bool {
			_, err := theme.ParsePreference(fl.Field().String())
			return err == nil
		})
		_ = v.RegisterValidation("color_scheme", func(fl validator.FieldLevel) bool {
			_, err := theme.ParseSystemPreferenceStrict(fl.Field().String())
			return err == nil
		})
	})
}

// bindingError turns a binding failure into an AppError. Theme fields get
// their own codes so clients can tell a bad value from a malformed body.
func bindingError(err error) *apperrors.AppError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewBadRequestError("Invalid request body").WithCause(err)
	}

	fields := make([]apperrors.ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "theme_preference":
			return apperrors.NewInvalidThemeError(fmt.Sprint(fe.Value()))
		case "color_scheme":
			return apperrors.NewInvalidColorSchemeError(fmt.Sprint(fe.Value()))
		}
		fields = append(fields, apperrors.ValidationError{
			Field:   fe.Field(),
			Value:   fe.Value(),
			Tag:     fe.Tag(),
			Message: fmt.Sprintf("%s failed on the '%s' rule", fe.Field(), fe.Tag()),
		})
	}
	return apperrors.NewValidationErrors(fields)
}

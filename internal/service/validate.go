package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/hypeshelf/internal/apperror"
	"github.com/sakif/hypeshelf/internal/model"
)

// Field limits for a recommendation. Lengths count characters, not bytes.
const (
	MaxTitleLength = 100
	MaxBlurbLength = 280
)

// recommendationInput is the validated shape of an add request. The json tag
// names the field in Validation errors.
type recommendationInput struct {
	Title string      `json:"title" validate:"required,title_max"`
	Genre model.Genre `json:"genre" validate:"required,genre"`
	Link  string      `json:"link"  validate:"omitempty,http_url"`
	Blurb string      `json:"blurb" validate:"required,blurb_max"`
}

// newValidator builds a validator that reports json field names and knows
// the closed genre set.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Aliases keep the limits in the constants above.
	v.RegisterAlias("title_max", fmt.Sprintf("max=%d", MaxTitleLength))
	v.RegisterAlias("blurb_max", fmt.Sprintf("max=%d", MaxBlurbLength))
	// "genre" can only fail on a value outside the closed set.
	if err := v.RegisterValidation("genre", func(fl validator.FieldLevel) bool {
		return model.Genre(fl.Field().String()).Valid()
	}); err != nil {
		panic(fmt.Sprintf("service: registering genre validation: %v", err))
	}
	return v
}

// toValidationError converts the first validator failure into an
// apperror.ValidationFailed carrying the field name.
func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return apperror.ValidationFailed(field, fmt.Sprintf("%s is required", field))
	case "title_max":
		return tooLong(field, MaxTitleLength)
	case "blurb_max":
		return tooLong(field, MaxBlurbLength)
	case "http_url":
		return apperror.ValidationFailed(field, fmt.Sprintf("%s must be a valid http or https URL", field))
	case "genre":
		return invalidGenre()
	}
	return apperror.ValidationFailed(field, fmt.Sprintf("%s is invalid", field))
}

func tooLong(field string, limit int) error {
	return apperror.ValidationFailed(field, fmt.Sprintf("%s must be %d characters or less", field, limit))
}

// ParseGenre validates an optional genre filter. An empty string means "no
// filter".
func ParseGenre(raw string) (model.Genre, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	g := model.Genre(raw)
	if !g.Valid() {
		return "", invalidGenre()
	}
	return g, nil
}

func invalidGenre() error {
	return apperror.ValidationFailed("genre", fmt.Sprintf("genre must be one of %s", joinGenres()))
}

func joinGenres() string {
	names := make([]string, len(model.Genres))
	for i, g := range model.Genres {
		names[i] = string(g)
	}
	return strings.Join(names, ", ")
}

package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// routeNamePattern restricts route names to letters, digits, spaces,
// underscores and dashes.
var routeNamePattern = regexp.MustCompile(`^[a-zA-Zа-яА-ЯёЁ0-9\s_-]+$`)

var routeValidator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("routename", func(fl validator.FieldLevel) bool {
		return routeNamePattern.MatchString(fl.Field().String())
	})
	return v
})

// NormalizeRouteSpec trims the name and location names. Empty location
// names become nil.
func NormalizeRouteSpec(spec RouteSpec) RouteSpec {
	spec.Name = strings.TrimSpace(spec.Name)
	spec.From.Name = normalizeName(spec.From.Name)
	spec.To.Name = normalizeName(spec.To.Name)
	return spec
}

func normalizeName(name *string) *string {
	if name == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*name)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// ValidateRouteSpec checks field-level constraints and returns
// ValidationErrors describing every violation.
func ValidateRouteSpec(spec RouteSpec) error {
	return validateStruct(spec)
}

func validateStruct(v any) error {
	err := routeValidator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate route: %w", err)
	}

	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{
			Field:   fieldPath(fe.Namespace()),
			Value:   fmt.Sprint(fe.Value()),
			Message: fieldMessage(fe),
		})
	}
	return out
}

// fieldPath turns "RouteSpec.Coordinates.Y" into "coordinates.y".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return strings.ToLower(ns)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "routename":
		return "may contain only letters, numbers, spaces, underscore and dash"
	case "lte":
		return fmt.Sprintf("must be <= %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be > %s", fe.Param())
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// routeNameProblems returns human-readable problems with a route name.
// Length is counted in characters.
func routeNameProblems(name string) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		return []string{"Route name cannot be empty"}
	}
	var problems []string
	if n := utf8.RuneCountInString(name); n > MaxRouteNameLength {
		problems = append(problems, fmt.Sprintf("Route name length must be between 1 and %d characters", MaxRouteNameLength))
	}
	if !routeNamePattern.MatchString(name) {
		problems = append(problems, "Route name contains invalid characters. Only letters, numbers, spaces, underscore and dash are allowed")
	}
	return problems
}

package jobs

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"deckgen/internal/domain"
)

var audiences = map[domain.Audience]struct{}{
	domain.AudienceBusiness:  {},
	domain.AudienceAcademic:  {},
	domain.AudienceGeneral:   {},
	domain.AudienceTechnical: {},
	domain.AudienceExecutive: {},
}

var templates = map[domain.Template]struct{}{
	domain.TemplateCorporate: {},
	domain.TemplateAcademic:  {},
	domain.TemplateStartup:   {},
	domain.TemplateMinimal:   {},
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("audience", func(fl validator.FieldLevel) bool {
		_, ok := audiences[domain.Audience(fl.Field().String())]
		return ok
	})
	_ = v.RegisterValidation("template", func(fl validator.FieldLevel) bool {
		_, ok := templates[domain.Template(fl.Field().String())]
		return ok
	})
	return v
}

// normalizeRequest trims and lowercases the enumerated fields before validation.
func normalizeRequest(req domain.DeckRequest) domain.DeckRequest {
	req.Topic = strings.TrimSpace(req.Topic)
	req.Audience = domain.Audience(strings.ToLower(strings.TrimSpace(string(req.Audience))))
	req.Template = domain.Template(strings.ToLower(strings.TrimSpace(string(req.Template))))
	req.Locale = strings.ToLower(strings.TrimSpace(req.Locale))
	if req.Locale == "" {
		req.Locale = "en"
	}
	return req
}

func (m *Machine) validateRequest(req domain.DeckRequest) error {
	err := m.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "audience":
		return fmt.Sprintf("audience %q is not supported", fe.Value())
	case "template":
		return fmt.Sprintf("template %q is not supported", fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

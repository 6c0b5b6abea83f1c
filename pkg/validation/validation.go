// Package validation wires go-playground/validator with English messages
// keyed by json field names.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"

	appErrors "github.com/noah-isme/studio-agenda-api/pkg/errors"
)

var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Validator bundles a validator instance with its translator.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

// New builds a validator that reports json field names, understands the
// "clock" tag (HH:MM, 24h) and translates messages to English.
func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return clockPattern.MatchString(fl.Field().String())
	})

	locale := en.New()
	uni := ut.New(locale, locale)
	trans, _ := uni.GetTranslator("en")
	_ = enTranslations.RegisterDefaultTranslations(v, trans)
	_ = v.RegisterTranslation("clock", trans, func(t ut.Translator) error {
		return t.Add("clock", "{0} must be a HH:MM time", true)
	}, func(t ut.Translator, fe validator.FieldError) string {
		msg, _ := t.T("clock", fe.Field())
		return msg
	})

	return &Validator{validate: v, trans: trans}
}

// Engine exposes the underlying validator for custom registrations.
func (v *Validator) Engine() *validator.Validate {
	return v.validate
}

// Struct validates payload and converts failures to a VALIDATION_ERROR.
func (v *Validator) Struct(payload interface{}) error {
	if err := v.validate.Struct(payload); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, v.Describe(err))
	}
	return nil
}

// Fields maps json field name to a human readable message.
func (v *Validator) Fields(err error) map[string]string {
	fields := make(map[string]string)
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fe.Field()] = fe.Translate(v.trans)
		}
		return fields
	}
	if err != nil {
		fields["detail"] = err.Error()
	}
	return fields
}

// Describe joins field messages into a single deterministic sentence.
func (v *Validator) Describe(err error) string {
	fields := v.Fields(err)
	if len(fields) == 0 {
		return appErrors.ErrValidation.Message
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, fields[k])
	}
	return strings.Join(msgs, "; ")
}

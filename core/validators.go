package core

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	alphaNumUnderRegex = regexp.MustCompile(`^[\w\s]+$`)
	phoneRe            = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)

	requiredText = "this field is required"
)

// customValidators are registered app wide along with their english texts.
var customValidators = []struct {
	tag  string
	text string
	fn   validator.Func
}{
	{
		tag:  "alphanum_",
		text: "only alphanumeric characters and underscores are allowed",
		fn:   func(fl validator.FieldLevel) bool { return alphaNumUnderRegex.MatchString(fl.Field().String()) },
	},
	{
		tag:  "notblank",
		text: "this field cannot be blank",
		fn:   func(fl validator.FieldLevel) bool { return strings.TrimSpace(fl.Field().String()) != "" },
	},
	{
		// E.164
		tag:  "phone",
		text: "phone must be a valid phone number in international format (e.g: +15555550100)",
		fn:   func(fl validator.FieldLevel) bool { return phoneRe.MatchString(fl.Field().String()) },
	},
}

// NewTranslator returns the english translator used to render validation errors.
func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	for _, cv := range customValidators {
		_ = validate.RegisterValidation(cv.tag, cv.fn)
		RegisterCustomTranslation(validate, translator, cv.tag, cv.text)
	}

	// built-in tags with friendlier texts
	for _, tag := range []string{"required", "required_with"} {
		RegisterCustomTranslation(validate, translator, tag, requiredText, true)
	}
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

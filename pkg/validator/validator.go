// Package validator provides request and record validation based on go-playground/validator,
// with domain rules (visibility scope, non-blank text) and en/zh error messages.
package validator

import (
	stderrors "errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

// Languages with registered messages. Any other language falls back to LangEN.
const (
	LangEN = "en"
	LangZH = "zh"
)

// Validator validates structs tagged with `validate` and renders failures
// in the caller's language. It is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
	trans    map[string]ut.Translator
}

var global = sync.OnceValue(New)

// Global returns the process-wide validator.
func Global() *Validator {
	return global()
}

// New builds a validator with the default and domain translations registered.
func New() *Validator {
	v := &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		trans:    make(map[string]ut.Translator, 2),
	}
	v.validate.RegisterTagNameFunc(fieldName)

	uni := ut.New(en.New(), en.New(), zh.New())
	enTrans, _ := uni.GetTranslator(LangEN)
	zhTrans, _ := uni.GetTranslator(LangZH)
	_ = en_translations.RegisterDefaultTranslations(v.validate, enTrans)
	_ = zh_translations.RegisterDefaultTranslations(v.validate, zhTrans)
	v.trans[LangEN] = enTrans
	v.trans[LangZH] = zhTrans

	v.registerCustomRules()
	v.registerCustomTranslations()
	return v
}

// fieldName reports fields by their json name, then form name, so messages
// match what the client sent.
func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
		switch name {
		case "-":
			return ""
		case "":
			continue
		default:
			return name
		}
	}
	return fld.Name
}

// Validate returns the raw validator error, or nil.
func (v *Validator) Validate(s any) error {
	return v.validate.Struct(s)
}

// ValidateWithLang validates s and returns translated failures, or nil.
func (v *Validator) ValidateWithLang(s any, lang string) *ValidationErrors {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return &ValidationErrors{Errors: []FieldError{{Field: "unknown", Tag: "unknown", Message: err.Error()}}}
	}

	trans := v.GetTranslator(lang)
	out := &ValidationErrors{Errors: make([]FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Errors = append(out.Errors, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Value:   fe.Value(),
			Param:   fe.Param(),
			Message: fe.Translate(trans),
		})
	}
	return out
}

// GetTranslator returns the translator for lang, defaulting to English.
func (v *Validator) GetTranslator(lang string) ut.Translator {
	if trans, ok := v.trans[lang]; ok {
		return trans
	}
	return v.trans[LangEN]
}

// Struct validates s with the global validator.
func Struct(s any) error {
	return Global().Validate(s)
}

// StructWithLang validates s with the global validator and translates failures.
func StructWithLang(s any, lang string) *ValidationErrors {
	return Global().ValidateWithLang(s, lang)
}

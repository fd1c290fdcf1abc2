package validator

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

// registerCustomTranslations registers translations for custom validation rules.
func (v *Validator) registerCustomTranslations() {
	if enTrans := v.GetTranslator(LangEN); enTrans != nil {
		registerAll(v.validate, enTrans, map[string]string{
			TagScope:        "{0} must be one of public, system or private",
			TagNotBlank:     "{0} must not be blank",
			TagNoWhitespace: "{0} must not contain whitespace characters",
			TagTrimmed:      "{0} must not have leading or trailing spaces",
		})
	}

	if zhTrans := v.GetTranslator(LangZH); zhTrans != nil {
		registerAll(v.validate, zhTrans, map[string]string{
			TagScope:        "{0}必须是 public、system 或 private 之一",
			TagNotBlank:     "{0}不能为空白",
			TagNoWhitespace: "{0}不能包含空白字符",
			TagTrimmed:      "{0}不能有前导或尾随空格",
		})
	}
}

func registerAll(validate *validator.Validate, trans ut.Translator, translations map[string]string) {
	for tag, message := range translations {
		registerTranslation(validate, trans, tag, message)
	}
}

// registerTranslation registers a single translation.
func registerTranslation(validate *validator.Validate, trans ut.Translator, tag, message string) {
	_ = validate.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, message, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T(tag, fe.Field())
			return t
		},
	)
}

// RegisterTranslation registers a single translation override.
func (v *Validator) RegisterTranslation(lang, tag, message string) {
	trans := v.GetTranslator(lang)
	if trans == nil {
		return
	}

	registerTranslation(v.validate, trans, tag, message)
}

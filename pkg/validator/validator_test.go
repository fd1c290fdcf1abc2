package validator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Content   string `json:"content" validate:"notblank"`
	SourceURI string `json:"source_uri" validate:"required,trimmed,max=512"`
	Scope     string `json:"scope" validate:"scope"`
	OwnerID   string `json:"owner_id" validate:"required_if=Scope private,nowhitespace"`
}

func TestGlobalIsShared(t *testing.T) {
	assert.Same(t, Global(), Global())
	assert.NotSame(t, Global(), New())
}

func TestRecordRules(t *testing.T) {
	tests := []struct {
		name   string
		in     record
		fields []string
	}{
		{
			name: "valid public",
			in:   record{Content: "housing target", SourceURI: "housing.pdf", Scope: "public"},
		},
		{
			name: "valid private",
			in:   record{Content: "memo", SourceURI: "memo.txt", Scope: "private", OwnerID: "ownerA"},
		},
		{
			name:   "blank content",
			in:     record{Content: "  \n\t", SourceURI: "a.md", Scope: "system"},
			fields: []string{"content"},
		},
		{
			name:   "unknown scope",
			in:     record{Content: "x", SourceURI: "a.md", Scope: "team"},
			fields: []string{"scope"},
		},
		{
			name:   "empty scope",
			in:     record{Content: "x", SourceURI: "a.md"},
			fields: []string{"scope"},
		},
		{
			name:   "private without owner",
			in:     record{Content: "x", SourceURI: "a.md", Scope: "private"},
			fields: []string{"owner_id"},
		},
		{
			name:   "untrimmed source",
			in:     record{Content: "x", SourceURI: " a.md", Scope: "public"},
			fields: []string{"source_uri"},
		},
		{
			name:   "owner with whitespace",
			in:     record{Content: "x", SourceURI: "a.md", Scope: "public", OwnerID: "a b"},
			fields: []string{"owner_id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := StructWithLang(tt.in, LangEN)
			if len(tt.fields) == 0 {
				assert.Nil(t, errs)
				assert.NoError(t, Struct(tt.in))
				return
			}
			require.NotNil(t, errs)
			assert.True(t, errs.HasErrors())
			assert.ElementsMatch(t, tt.fields, keys(errs.ByField()))
		})
	}
}

func TestTranslatedMessages(t *testing.T) {
	in := record{Content: "x", SourceURI: "a.md", Scope: "team"}

	en := StructWithLang(in, LangEN)
	require.NotNil(t, en)
	assert.Equal(t, "scope must be one of public, system or private", en.First())
	assert.Equal(t, "scope", en.FirstField())

	zh := StructWithLang(in, LangZH)
	require.NotNil(t, zh)
	assert.Equal(t, "scope必须是 public、system 或 private 之一", zh.First())

	// unknown languages fall back to English
	other := StructWithLang(in, "ar")
	require.NotNil(t, other)
	assert.Equal(t, en.First(), other.First())
}

func TestRegisterTranslationOverride(t *testing.T) {
	v := New()
	v.RegisterTranslation(LangEN, TagNotBlank, "{0} is required")

	errs := v.ValidateWithLang(record{SourceURI: "a.md", Scope: "public"}, LangEN)
	require.NotNil(t, errs)
	assert.Equal(t, "content is required", errs.First())
}

func TestValidationErrorsHelpers(t *testing.T) {
	var empty *ValidationErrors
	assert.False(t, empty.HasErrors())
	assert.Zero(t, empty.Count())
	assert.Empty(t, empty.First())
	assert.Nil(t, empty.ByField())
	assert.Empty(t, empty.Error())

	errs := &ValidationErrors{Errors: []FieldError{
		{Field: "scope", Tag: "scope", Message: "bad scope"},
		{Field: "content", Tag: "notblank", Message: "blank"},
	}}
	assert.Equal(t, 2, errs.Count())
	assert.Equal(t, []string{"bad scope", "blank"}, errs.Messages())
	assert.Equal(t, "validation failed: bad scope; blank", errs.Error())
	assert.Equal(t, map[string][]string{"scope": {"bad scope"}, "content": {"blank"}}, errs.ByField())
}

func TestConcurrentValidation(t *testing.T) {
	v := New()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NotNil(t, v.ValidateWithLang(record{Scope: "bogus"}, LangZH))
		}()
	}
	wg.Wait()
}

func keys(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

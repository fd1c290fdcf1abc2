package textutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitterRespectsSize(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		b.WriteString("The national housing program supports citizens. ")
	}
	s := NewSplitter(200, 40)

	chunks, err := s.Split(b.String())
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 200)
		assert.NotEmpty(t, strings.TrimSpace(c))
	}
}

func TestSplitterShortText(t *testing.T) {
	chunks, err := NewSplitter(1000, 200).Split("short text")
	require.NoError(t, err)
	assert.Equal(t, []string{"short text"}, chunks)

	chunks, err = NewSplitter(1000, 200).Split("   \n\n  ")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"مرحبا بالعالم", 5, "مرحبا"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TruncateString(tt.in, tt.max))
	}
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, LanguageArabic, DetectLanguage("ما هو برنامج سكني؟"))
	assert.Equal(t, LanguageArabic, DetectLanguage("Sakani برنامج"))
	assert.Equal(t, LanguageEnglish, DetectLanguage("What is the housing program?"))
	assert.Equal(t, LanguageEnglish, DetectLanguage(""))
}

func TestLanguageName(t *testing.T) {
	assert.Equal(t, "Arabic", LanguageArabic.Name())
	assert.Equal(t, "English", LanguageEnglish.Name())
	assert.Equal(t, "English", Language("").Name())
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 2, EstimateTokens("مرحبا"))
}

func TestParseIndexList(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []int
		wantErr bool
	}{
		{name: "bare array", in: "[0, 2, 5]", want: []int{0, 2, 5}},
		{name: "object", in: `{"indices": [1, 3]}`, want: []int{1, 3}},
		{name: "fenced", in: "```json\n[4]\n```", want: []int{4}},
		{name: "prose", in: "Relevant: [0,1] are the best.", want: []int{0, 1}},
		{name: "empty array", in: "[]", want: []int{}},
		{name: "no json", in: "none of them", wantErr: true},
		{name: "strings", in: `["a"]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIndexList(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeywordHelpers(t *testing.T) {
	kw := []string{"pillar", "vision 2030", "law"}
	assert.True(t, ContainsAnyFold("What is VISION 2030?", kw))
	assert.False(t, ContainsAnyFold("weather today", kw))
	assert.Equal(t, 2, CountPresentFold("Which pillar of Vision 2030 covers housing?", kw))
	assert.Equal(t, 64, len(HashString("x")))
}

// Package textutil 提供 RAG 相关的文本处理工具函数。
package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/kart-io/sentinel-rag/pkg/utils/json"
)

// DefaultSeparators 递归切分使用的分隔符，优先在 Markdown 标题处断开。
var DefaultSeparators = []string{"\n\n## ", "\n\n# ", "\n\n", "\n", " ", ""}

// Splitter 递归字符切分器。
type Splitter struct {
	splitter textsplitter.RecursiveCharacter
}

// NewSplitter 创建切分器，chunkSize 与 overlap 以字符计。
func NewSplitter(chunkSize, overlap int) *Splitter {
	return &Splitter{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators(DefaultSeparators),
		),
	}
}

// Split 切分文本并丢弃空白块。
func (s *Splitter) Split(text string) ([]string, error) {
	parts, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}
	chunks := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			chunks = append(chunks, p)
		}
	}
	return chunks, nil
}

// HashString 计算字符串的 SHA-256 哈希值。
func HashString(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}

// TruncateString 截断字符串到指定的最大 Unicode 字符数。
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

// Language 查询语言。
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageArabic  Language = "ar"
)

// Name 返回语言的英文名称，用于提示词。
func (l Language) Name() string {
	if l == LanguageArabic {
		return "Arabic"
	}
	return "English"
}

// DetectLanguage 含阿拉伯字母区段 (U+0600–U+06FF) 字符时判定为阿拉伯语，否则为英语。
func DetectLanguage(s string) Language {
	for _, r := range s {
		if r >= 0x0600 && r <= 0x06FF {
			return LanguageArabic
		}
	}
	return LanguageEnglish
}

// EstimateTokens 按每 4 个字符约 1 个 token 估算，向上取整。
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + 3) / 4
}

var (
	jsonArrayRe  = regexp.MustCompile(`\[[\s\S]*?\]`)
	jsonObjectRe = regexp.MustCompile(`\{[\s\S]*\}`)
)

// ParseIndexList 从模型输出中解析整数下标列表。
// 支持裸数组 "[0, 2]"、对象 {"indices": [0, 2]}，以及被其他文本或代码块包裹的情况。
func ParseIndexList(s string) ([]int, error) {
	s = strings.TrimSpace(s)

	if obj := jsonObjectRe.FindString(s); obj != "" {
		var wrapped struct {
			Indices []int `json:"indices"`
		}
		if err := json.Unmarshal([]byte(obj), &wrapped); err == nil && wrapped.Indices != nil {
			return wrapped.Indices, nil
		}
	}

	match := jsonArrayRe.FindString(s)
	if match == "" {
		return nil, fmt.Errorf("未找到 JSON 下标数组")
	}
	var indices []int
	if err := json.Unmarshal([]byte(match), &indices); err != nil {
		return nil, fmt.Errorf("解析下标数组失败: %w", err)
	}
	return indices, nil
}

// ContainsAnyFold 判断 s 是否包含任一关键词（不区分大小写）。
func ContainsAnyFold(s string, keywords []string) bool {
	lower := strings.ToLower(s)
	for _, k := range keywords {
		if strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// CountPresentFold 统计 s 中出现的关键词个数（每个关键词最多计一次）。
func CountPresentFold(s string, keywords []string) int {
	lower := strings.ToLower(s)
	n := 0
	for _, k := range keywords {
		if strings.Contains(lower, strings.ToLower(k)) {
			n++
		}
	}
	return n
}

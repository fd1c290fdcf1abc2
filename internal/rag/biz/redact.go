package biz

import "regexp"

var (
	nationalIDPattern = regexp.MustCompile(`\b[12]\d{9}\b`)
	phonePattern      = regexp.MustCompile(`(?:\+9665\d{8}|\b9665\d{8}|\b05\d{8})\b`)
	emailPattern      = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
)

// RedactPII 遮蔽国民身份证/居留号、手机号与邮箱。
// 遮蔽后的文本只用于路由与检索，最终发给模型的仍是原始查询。
func RedactPII(text string) string {
	text = nationalIDPattern.ReplaceAllString(text, "[SAUDI_ID_REDACTED]")
	text = phonePattern.ReplaceAllString(text, "[PHONE_REDACTED]")
	return emailPattern.ReplaceAllString(text, "[EMAIL_REDACTED]")
}

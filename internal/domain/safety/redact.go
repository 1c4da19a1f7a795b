package safety

import "regexp"

// Placeholder 脱敏后的替换文本
const Placeholder = "[redacted]"

var redactPatterns = []*regexp.Regexp{
	// 邮箱
	regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`),
	// 街道地址，如 "1234 N Main Street"、"55 Elm Ave, Apt 4"
	// 街道名须首字母大写，后缀须为首字母大写或缩写形式，避免误伤 "1 bright place" 之类的普通句子
	regexp.MustCompile(`\b\d{1,6}\s+(?:[NSEW]\.?\s+)?(?:[A-Z][A-Za-z0-9']*\s+){1,3}(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Way|Place|Pl|Terrace|Circle|Cir|Parkway|Pkwy|Highway|Hwy)\b\.?(?:,?\s*(?:Apt|Unit|Suite|Ste|apt|unit|suite|#)\s*\.?\s*[A-Za-z0-9\-]+)?`),
	// 电话号码，如 "(512) 555-0100"、"+1 512.555.0100"、"+44 20 7946 0958"
	regexp.MustCompile(`(?:\+\d{1,3}[\s.\-]?)?(?:\(\d{2,4}\)|\b\d{2,4})[\s.\-]?\d{3,4}[\s.\-]?\d{3,4}\b`),
}

// Redact 替换文本中的邮箱、电话号码和街道地址，返回脱敏后的文本及是否发生替换
func Redact(text string) (string, bool) {
	out := text
	for _, re := range redactPatterns {
		out = re.ReplaceAllString(out, Placeholder)
	}
	return out, out != text
}

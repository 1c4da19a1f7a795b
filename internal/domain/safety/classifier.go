package safety

import (
	"context"
	"regexp"
	"sort"
)

// Verdict 审核结果。Categories 只用于日志，不返回给终端用户
type Verdict struct {
	Allowed    bool     `json:"allowed"`
	Categories []string `json:"categories,omitempty"`
}

// Allow 通过
func Allow() Verdict { return Verdict{Allowed: true} }

// Classifier 内容分类器
type Classifier interface {
	Classify(ctx context.Context, text string) (Verdict, error)
}

// KeywordClassifier 本地关键词分类器，总是可用。
// 园艺常用词（如 "kill aphids"、"new shoots"）不会被误判。
type KeywordClassifier struct {
	patterns map[string]*regexp.Regexp
}

var defaultPatterns = map[string]string{
	"self_harm": `(?i)\b(suicide|kill (myself|yourself|himself|herself)|self[- ]harm|end my life)\b`,
	"violence":  `(?i)\b(bomb|murder|terror(ism|ist)?|shoot (him|her|them|someone|people)|kill (him|her|them|someone|people|my \w+))\b`,
	"hate":      `(?i)\b(hate (speech|crime)|ethnic cleansing|genocide)\b`,
	"sexual":    `(?i)\b(nsfw|porn(ography)?|explicit sex)\b`,
	"poisoning": `(?i)\b(poison (a|my|the|someone|him|her|them) (person|dog|cat|neighbou?r|husband|wife)|how to poison)\b`,
}

// NewKeywordClassifier 创建默认关键词分类器
func NewKeywordClassifier() *KeywordClassifier {
	c := &KeywordClassifier{patterns: make(map[string]*regexp.Regexp, len(defaultPatterns))}
	for category, expr := range defaultPatterns {
		c.patterns[category] = regexp.MustCompile(expr)
	}
	return c
}

// Classify 匹配任意类别即拒绝
func (c *KeywordClassifier) Classify(_ context.Context, text string) (Verdict, error) {
	return c.classify(text), nil
}

func (c *KeywordClassifier) classify(text string) Verdict {
	var categories []string
	for category, re := range c.patterns {
		if re.MatchString(text) {
			categories = append(categories, category)
		}
	}
	if len(categories) == 0 {
		return Allow()
	}
	sort.Strings(categories)
	return Verdict{Allowed: false, Categories: categories}
}

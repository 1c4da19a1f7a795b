// Package safety 负责内容审核和个人信息脱敏，两项检查都是幂等且无副作用的。
package safety

import (
	"context"
	"sort"
	"time"

	"plantcare-http-service/internal/infrastructure/logger"
	"plantcare-http-service/internal/infrastructure/resilience"
)

// Gate 审核闸门：本地分类器总是执行；远程分类器可选，不可用时以本地结果为准。
// 任一分类器拒绝即拒绝。
type Gate struct {
	local  *KeywordClassifier
	remote Classifier
	policy resilience.Policy
}

// NewGate 创建审核闸门，remote 可以为 nil
func NewGate(remote Classifier, timeout time.Duration) *Gate {
	return &Gate{
		local:  NewKeywordClassifier(),
		remote: remote,
		policy: resilience.DefaultPolicy(timeout),
	}
}

// WithPolicy 替换远程分类器的超时重试策略
func (g *Gate) WithPolicy(p resilience.Policy) *Gate {
	g.policy = p
	return g
}

// CheckInput 审核用户输入
func (g *Gate) CheckInput(ctx context.Context, text string) Verdict {
	return g.check(ctx, "input", text)
}

// CheckOutput 审核生成的文本
func (g *Gate) CheckOutput(ctx context.Context, text string) Verdict {
	return g.check(ctx, "output", text)
}

func (g *Gate) check(ctx context.Context, stage, text string) Verdict {
	verdict := g.local.classify(text)

	if g.remote != nil {
		var remote Verdict
		err := resilience.Do(ctx, g.policy, func(ctx context.Context) error {
			var err error
			remote, err = g.remote.Classify(ctx, text)
			return err
		})
		if err != nil {
			logger.Warning("远程审核不可用，使用本地结果: stage=%s, err=%v", stage, err)
		} else if !remote.Allowed {
			verdict = merge(verdict, remote)
		}
	}

	if !verdict.Allowed {
		logger.Warning("内容审核未通过: stage=%s, categories=%v", stage, verdict.Categories)
	}
	return verdict
}

func merge(a, b Verdict) Verdict {
	seen := make(map[string]bool)
	var categories []string
	for _, c := range append(append([]string{}, a.Categories...), b.Categories...) {
		if !seen[c] {
			seen[c] = true
			categories = append(categories, c)
		}
	}
	sort.Strings(categories)
	if len(categories) == 0 {
		categories = []string{"unspecified"}
	}
	return Verdict{Allowed: false, Categories: categories}
}

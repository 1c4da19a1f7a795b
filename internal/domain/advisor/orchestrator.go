// Package advisor 回答养护问题：参数校验、限流、输入审核、知识库、天气、AI补全、输出审核与脱敏。
// 任何可选环节失败都会降级到知识库和天气生成的基础回答，而不是让请求失败。
package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"plantcare-http-service/internal/domain/knowledge"
	"plantcare-http-service/internal/domain/models"
	"plantcare-http-service/internal/domain/safety"
	"plantcare-http-service/internal/domain/weather"
	"plantcare-http-service/internal/error/apperror"
	"plantcare-http-service/internal/infrastructure/logger"
	"plantcare-http-service/internal/infrastructure/resilience"
)

// RefusalText 输入审核未通过时返回的固定文本
const RefusalText = "Sorry, I can't help with that request. I can answer questions about watering, light, feeding, repotting and keeping plants healthy."

// MaxTips 基础回答最多使用的建议条数
const MaxTips = 3

// CompletionRequest AI补全的输入，包含用于约束回答的知识和天气
type CompletionRequest struct {
	Question       string
	PlantName      string
	CareContext    string
	Tips           []models.CareTip
	WeatherSummary string
	Caveats        []string
}

// Completer AI补全服务
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// RateLimiter 调用方配额检查，超限时返回 *apperror.RateLimited
type RateLimiter interface {
	Allow(ctx context.Context, key string) error
}

// Orchestrator 问答流程编排，不持有可变状态，可并发使用
type Orchestrator struct {
	kb         *knowledge.KnowledgeBase
	weather    *weather.Context
	gate       *safety.Gate
	completer  Completer
	limiter    RateLimiter
	thresholds weather.Thresholds
	policy     resilience.Policy
}

// Option 可选配置
type Option func(*Orchestrator)

// WithCompleter 启用AI补全
func WithCompleter(c Completer) Option {
	return func(o *Orchestrator) { o.completer = c }
}

// WithRateLimiter 启用限流
func WithRateLimiter(l RateLimiter) Option {
	return func(o *Orchestrator) { o.limiter = l }
}

// WithThresholds 设置天气提示阈值
func WithThresholds(th weather.Thresholds) Option {
	return func(o *Orchestrator) { o.thresholds = th }
}

// WithCompletionPolicy 设置AI补全的超时重试策略
func WithCompletionPolicy(p resilience.Policy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// NewOrchestrator 创建编排器
func NewOrchestrator(kb *knowledge.KnowledgeBase, wctx *weather.Context, gate *safety.Gate, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		kb:         kb,
		weather:    wctx,
		gate:       gate,
		thresholds: weather.DefaultThresholds(),
		policy:     resilience.DefaultPolicy(12 * time.Second),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Answer 回答问题。只会返回参数错误、限流错误或限流后端故障；审核拒绝以固定文本回答
func (o *Orchestrator) Answer(ctx context.Context, req models.AnswerRequest) (*models.AnswerResponse, error) {
	// 1 校验与限流
	req, err := Sanitize(req)
	if err != nil {
		return nil, err
	}
	if o.limiter != nil {
		key := req.CallerKey
		if key == "" {
			key = "anonymous"
		}
		if err := o.limiter.Allow(ctx, key); err != nil {
			if _, ok := apperror.AsRateLimited(err); ok {
				return nil, err
			}
			return nil, fmt.Errorf("检查提问配额失败: %w", err)
		}
	}

	// 2 输入审核
	if verdict := o.gate.CheckInput(ctx, req.PlantName+"\n"+req.Question); !verdict.Allowed {
		return &models.AnswerResponse{
			Answer:  RefusalText,
			Source:  models.SourceFallbackTemplate,
			Refused: true,
		}, nil
	}

	// 3 知识库
	tips := knowledge.RankForTopic(o.kb.Lookup(req.PlantName, req.CareContext), knowledge.DetectTopic(req.Question), MaxTips)
	resp := &models.AnswerResponse{
		Answer: baselineText(req, tips),
		Source: models.SourceRuleOnly,
		Tips:   tips,
	}

	// 4 天气
	var caveats []string
	var summary string
	if req.HasLocation() {
		result := o.weather.FetchRaw(ctx, req.City, req.Latitude, req.Longitude)
		if result.Available() {
			resp.Weather = result.Snapshot
			summary = weather.Summary(*result.Snapshot)
			cc, _ := models.ParseCareContext(req.CareContext)
			caveats = weather.Caveats(*result.Snapshot, o.thresholds, cc.Sheltered())
			if len(caveats) > 0 {
				resp.Answer += "\n\nWeather for " + result.Snapshot.Location + ":\n- " + strings.Join(caveats, "\n- ")
				resp.Source = models.SourceRulePlusWeather
			}
		} else {
			logger.Info("仅使用知识库回答: %v", result.Err())
		}
	}
	baseline := resp.Answer

	// 5 AI补全
	aiText, err := o.complete(ctx, CompletionRequest{
		Question:       req.Question,
		PlantName:      req.PlantName,
		CareContext:    req.CareContext,
		Tips:           tips,
		WeatherSummary: summary,
		Caveats:        caveats,
	})
	switch {
	case err != nil:
		if o.completer != nil {
			logger.Warning("AI补全失败，使用基础回答: %v", err)
		}
	case o.gate.CheckOutput(ctx, aiText).Allowed:
		// 6 输出审核
		resp.Answer = aiText
		resp.Source = models.SourceAIGenerated
	default:
		resp.Answer = baseline
	}

	// 7 脱敏总是执行
	resp.Answer, resp.Redacted = safety.Redact(resp.Answer)
	return resp, nil
}

// complete 失败时返回包装了 apperror.ErrUnavailable 的错误，由调用方降级
func (o *Orchestrator) complete(ctx context.Context, req CompletionRequest) (string, error) {
	if o.completer == nil {
		return "", fmt.Errorf("%w: completion not configured", apperror.ErrUnavailable)
	}

	var text string
	err := resilience.Do(ctx, o.policy, func(ctx context.Context) error {
		out, err := o.completer.Complete(ctx, req)
		if err != nil {
			return err
		}
		text = strings.TrimSpace(out)
		if text == "" {
			return errors.New("empty completion")
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: completion: %v", apperror.ErrUnavailable, err)
	}
	return text, nil
}

func baselineText(req models.AnswerRequest, tips []models.CareTip) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Care tips for %s%s:", req.PlantName, contextPhrase(req.CareContext))
	for _, tip := range tips {
		b.WriteString("\n- ")
		b.WriteString(tip.Text)
	}
	return b.String()
}

func contextPhrase(careContext string) string {
	cc, ok := models.ParseCareContext(careContext)
	if !ok {
		return ""
	}
	switch cc {
	case models.CareIndoorPotted:
		return " (indoors in a pot)"
	case models.CareOutdoorPotted:
		return " (outdoors in a pot)"
	case models.CareOutdoorGround:
		return " (in the ground outdoors)"
	case models.CareGreenhouse:
		return " (in a greenhouse)"
	}
	return ""
}

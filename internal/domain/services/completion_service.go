package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"plantcare-http-service/internal/domain/advisor"
	"plantcare-http-service/internal/domain/safety"
	"plantcare-http-service/internal/error/apperror"
	"plantcare-http-service/internal/infrastructure/config"
)

const completionSystemPrompt = "You are a plant-care expert. Provide safe, concise, practical steps. " +
	"Stay consistent with the reference tips you are given. If uncertain, say so. " +
	"Never include personal contact details, links or product promotions."

const moderationSystemPrompt = "You are a content safety classifier for a plant-care assistant. " +
	"Classify the user-supplied text. Gardening talk about killing pests, pruning shoots or toxic plants is allowed. " +
	`Respond only with JSON: {"allowed": true|false, "categories": ["self_harm"|"violence"|"hate"|"sexual"|"harassment"|"dangerous"]}.`

// contentGenerator genai.Models 的最小子集，测试中可替换
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// CompletionService 基于 Gemini 的AI补全，实现 advisor.Completer
type CompletionService struct {
	models contentGenerator
	model  string
}

// NewCompletionService 创建AI补全服务，未配置 GEMINI_API_KEY 时返回 nil
func NewCompletionService(ctx context.Context, cfg *config.Config) (*CompletionService, error) {
	if !cfg.CompletionEnabled() {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("创建Gemini客户端失败: %w", err)
	}
	return &CompletionService{models: client.Models, model: cfg.GeminiModel}, nil
}

// Complete 生成回答
func (s *CompletionService) Complete(ctx context.Context, req advisor.CompletionRequest) (string, error) {
	resp, err := s.models.GenerateContent(ctx, s.model, genai.Text(completionPrompt(req)), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(completionSystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.3),
		MaxOutputTokens:   400,
	})
	if err != nil {
		return "", classifyGenAIError(err)
	}
	return resp.Text(), nil
}

func completionPrompt(req advisor.CompletionRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plant: %s\n", req.PlantName)
	fmt.Fprintf(&b, "Care context: %s\n", req.CareContext)
	fmt.Fprintf(&b, "Question: %s\n", req.Question)
	if req.WeatherSummary != "" {
		fmt.Fprintf(&b, "Weather (next 24h): %s\n", req.WeatherSummary)
	} else {
		b.WriteString("Weather: n/a\n")
	}
	if len(req.Tips) > 0 {
		b.WriteString("Reference tips:\n")
		for _, tip := range req.Tips {
			fmt.Fprintf(&b, "- [%s] %s\n", tip.Topic, tip.Text)
		}
	}
	if len(req.Caveats) > 0 {
		b.WriteString("Weather caveats:\n")
		for _, c := range req.Caveats {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	b.WriteString("\nRespond with 3-6 short bullet points.")
	return b.String()
}

// ModerationService 基于 Gemini 的远程审核，实现 safety.Classifier
type ModerationService struct {
	models contentGenerator
	model  string
}

// NewModerationService 创建远程审核服务，未启用时返回 nil
func NewModerationService(ctx context.Context, cfg *config.Config) (*ModerationService, error) {
	if !cfg.ModerationRemote || !cfg.CompletionEnabled() {
		return nil, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("创建Gemini客户端失败: %w", err)
	}
	return &ModerationService{models: client.Models, model: cfg.GeminiModel}, nil
}

// Classify 分类文本
func (s *ModerationService) Classify(ctx context.Context, text string) (safety.Verdict, error) {
	resp, err := s.models.GenerateContent(ctx, s.model, genai.Text(text), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(moderationSystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0),
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		return safety.Verdict{}, classifyGenAIError(err)
	}

	var verdict safety.Verdict
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp.Text())), &verdict); err != nil {
		return safety.Verdict{}, fmt.Errorf("解析审核结果失败: %w", err)
	}
	return verdict, nil
}

// 5xx 视为临时错误；配额耗尽（429）等语义错误不重试
func classifyGenAIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code >= 500 {
			return apperror.Transient(err)
		}
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperror.Transient(err)
	}
	return err
}

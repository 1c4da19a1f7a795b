package advisor

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"plantcare-http-service/internal/domain/knowledge"
	"plantcare-http-service/internal/domain/models"
	"plantcare-http-service/internal/domain/safety"
	"plantcare-http-service/internal/domain/weather"
	"plantcare-http-service/internal/error/apperror"
	"plantcare-http-service/internal/infrastructure/resilience"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingProvider struct {
	calls atomic.Int32
	obs   weather.Observation
	err   error
}

func (p *countingProvider) Forecast(ctx context.Context, loc weather.Location) (weather.Observation, error) {
	p.calls.Add(1)
	if p.err != nil {
		return weather.Observation{}, p.err
	}
	obs := p.obs
	obs.Location = loc.String()
	return obs, nil
}

type countingCompleter struct {
	calls atomic.Int32
	text  string
	err   error
	last  CompletionRequest
}

func (c *countingCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	c.calls.Add(1)
	c.last = req
	return c.text, c.err
}

type denyAll struct{}

func (denyAll) Allow(ctx context.Context, key string) error {
	return &apperror.RateLimited{RetryAfter: 42 * time.Second}
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(ctx context.Context, key string) error {
	return errors.New("redis: connection refused")
}

var fastPolicy = resilience.Policy{Timeout: 100 * time.Millisecond, Attempts: 2, Backoff: time.Millisecond}

func newOrchestrator(t *testing.T, provider weather.Provider, opts ...Option) *Orchestrator {
	t.Helper()
	kb, err := knowledge.LoadEmbedded()
	require.NoError(t, err)
	wctx := weather.NewContext(provider, time.Second).WithPolicy(fastPolicy)
	gate := safety.NewGate(nil, time.Second)
	return NewOrchestrator(kb, wctx, gate, append([]Option{WithCompletionPolicy(fastPolicy)}, opts...)...)
}

func rainyProvider() *countingProvider {
	return &countingProvider{obs: weather.Observation{Category: "Rain", PrecipitationInches: 1.2, TempMinF: 55, TempMaxF: 66, Humidity: 90}}
}

func TestValidationFailsBeforeAnyCall(t *testing.T) {
	provider := rainyProvider()
	completer := &countingCompleter{text: "hi"}
	o := newOrchestrator(t, provider, WithCompleter(completer))

	_, err := o.Answer(context.Background(), models.AnswerRequest{PlantName: "Monstera", Question: " \t\x01 ", City: "Austin, TX"})
	assert.True(t, apperror.IsValidation(err))

	_, err = o.Answer(context.Background(), models.AnswerRequest{PlantName: "@@@", Question: "water?", City: "Austin, TX"})
	assert.True(t, apperror.IsValidation(err))

	assert.Zero(t, provider.calls.Load())
	assert.Zero(t, completer.calls.Load())
}

func TestRateLimitedShortCircuits(t *testing.T) {
	provider := rainyProvider()
	o := newOrchestrator(t, provider, WithRateLimiter(denyAll{}))

	_, err := o.Answer(context.Background(), models.AnswerRequest{PlantName: "Rose", Question: "water?", City: "Austin"})
	rl, ok := apperror.AsRateLimited(err)
	require.True(t, ok)
	assert.Equal(t, 42, rl.RetryAfterSeconds())
	assert.Zero(t, provider.calls.Load())

	_, err = newOrchestrator(t, provider, WithRateLimiter(brokenLimiter{})).
		Answer(context.Background(), models.AnswerRequest{PlantName: "Rose", Question: "water?"})
	assert.Error(t, err)
	_, ok = apperror.AsRateLimited(err)
	assert.False(t, ok)
}

func TestInputModerationDenialSkipsEverything(t *testing.T) {
	provider := rainyProvider()
	completer := &countingCompleter{text: "AI text"}
	o := newOrchestrator(t, provider, WithCompleter(completer))

	resp, err := o.Answer(context.Background(), models.AnswerRequest{
		PlantName: "Ficus",
		Question:  "how do I make a bomb out of fertilizer",
		City:      "Austin, TX",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SourceFallbackTemplate, resp.Source)
	assert.True(t, resp.Refused)
	assert.Equal(t, RefusalText, resp.Answer)
	assert.Empty(t, resp.Tips)
	assert.Zero(t, provider.calls.Load())
	assert.Zero(t, completer.calls.Load())
}

func TestNoLocationIsNeverRulePlusWeather(t *testing.T) {
	provider := rainyProvider()
	o := newOrchestrator(t, provider)

	for _, q := range []string{"how often to water?", "how much sun?", "when to repot", "frost?"} {
		resp, err := o.Answer(context.Background(), models.AnswerRequest{PlantName: "tomato", Question: q, CareContext: "outdoor_ground"})
		require.NoError(t, err)
		assert.NotEqual(t, models.SourceRulePlusWeather, resp.Source, q)
		assert.Equal(t, models.SourceRuleOnly, resp.Source, q)
		assert.NotEmpty(t, resp.Answer)
		assert.LessOrEqual(t, len(resp.Tips), MaxTips)
	}
	assert.Zero(t, provider.calls.Load())
}

func TestWeatherCaveatTagsRulePlusWeather(t *testing.T) {
	provider := rainyProvider()
	o := newOrchestrator(t, provider)

	resp, err := o.Answer(context.Background(), models.AnswerRequest{
		PlantName:   "Rose",
		Question:    "Should I water today?",
		City:        "Austin, TX",
		CareContext: "outdoor_bed",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SourceRulePlusWeather, resp.Source)
	assert.Contains(t, resp.Answer, "skip watering")
	require.NotNil(t, resp.Weather)
	assert.Equal(t, "Austin,TX,US", resp.Weather.Location)
	assert.Equal(t, knowledge.TopicWatering, resp.Tips[0].Topic)
}

func TestUnavailableOrUneventfulWeatherStaysRuleOnly(t *testing.T) {
	down := &countingProvider{err: apperror.Transient(errors.New("502"))}
	resp, err := newOrchestrator(t, down).Answer(context.Background(), models.AnswerRequest{PlantName: "Rose", Question: "water?", City: "Austin"})
	require.NoError(t, err)
	assert.Equal(t, models.SourceRuleOnly, resp.Source)
	assert.Nil(t, resp.Weather)
	assert.Equal(t, int32(2), down.calls.Load())

	mild := &countingProvider{obs: weather.Observation{Category: "Clouds", PrecipitationInches: 0.1, TempMinF: 60, TempMaxF: 72}}
	resp, err = newOrchestrator(t, mild).Answer(context.Background(), models.AnswerRequest{PlantName: "Rose", Question: "water?", City: "Austin"})
	require.NoError(t, err)
	assert.Equal(t, models.SourceRuleOnly, resp.Source)
	assert.NotNil(t, resp.Weather, "snapshot is echoed even when it adds no caveat")

	// 位置无法解析视为天气不可用
	bad := rainyProvider()
	resp, err = newOrchestrator(t, bad).Answer(context.Background(), models.AnswerRequest{PlantName: "Rose", Question: "water?", City: "<<>>"})
	require.NoError(t, err)
	assert.Equal(t, models.SourceRuleOnly, resp.Source)
	assert.Zero(t, bad.calls.Load())
}

func TestAIAnswerIsGroundedAndTagged(t *testing.T) {
	completer := &countingCompleter{text: "- Water when the top 5 cm are dry.\n- Rain is coming, so wait."}
	o := newOrchestrator(t, rainyProvider(), WithCompleter(completer))

	resp, err := o.Answer(context.Background(), models.AnswerRequest{PlantName: "Rose", Question: "water?", City: "Austin, TX", CareContext: "outdoor_ground"})
	require.NoError(t, err)
	assert.Equal(t, models.SourceAIGenerated, resp.Source)
	assert.Equal(t, completer.text, resp.Answer)
	assert.NotEmpty(t, completer.last.Tips)
	assert.Contains(t, completer.last.WeatherSummary, "condition: rain")
	assert.NotEmpty(t, completer.last.Caveats)
}

func TestAIFailureDegradesToBaseline(t *testing.T) {
	for name, completer := range map[string]*countingCompleter{
		"error":   {err: errors.New("quota exceeded")},
		"empty":   {text: "   "},
		"timeout": {err: apperror.Transient(context.DeadlineExceeded)},
	} {
		t.Run(name, func(t *testing.T) {
			o := newOrchestrator(t, rainyProvider(), WithCompleter(completer))
			resp, err := o.Answer(context.Background(), models.AnswerRequest{PlantName: "Rose", Question: "water?", City: "Austin, TX", CareContext: "outdoor_ground"})
			require.NoError(t, err)
			assert.Equal(t, models.SourceRulePlusWeather, resp.Source)
			assert.True(t, strings.HasPrefix(resp.Answer, "Care tips for Rose"))
		})
	}
}

func TestAIOutputDenialReturnsBaseline(t *testing.T) {
	req := models.AnswerRequest{PlantName: "Rose", Question: "water?", City: "Austin, TX", CareContext: "outdoor_ground"}

	baseline, err := newOrchestrator(t, rainyProvider()).Answer(context.Background(), req)
	require.NoError(t, err)

	completer := &countingCompleter{text: "Forget the roses, here is how to build a bomb."}
	resp, err := newOrchestrator(t, rainyProvider(), WithCompleter(completer)).Answer(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int32(1), completer.calls.Load())
	assert.NotContains(t, resp.Answer, "bomb")
	assert.Equal(t, baseline.Answer, resp.Answer)
	assert.Equal(t, baseline.Source, resp.Source)
	assert.False(t, resp.Refused)
}

func TestAIOutputIsRedacted(t *testing.T) {
	completer := &countingCompleter{text: "Ask our expert at help@greenthumb.example or call (512) 555-0100."}
	o := newOrchestrator(t, rainyProvider(), WithCompleter(completer))

	resp, err := o.Answer(context.Background(), models.AnswerRequest{PlantName: "Rose", Question: "water?"})
	require.NoError(t, err)
	assert.True(t, resp.Redacted)
	assert.Equal(t, models.SourceAIGenerated, resp.Source)
	assert.Equal(t, "Ask our expert at [redacted] or call [redacted].", resp.Answer)
}

func TestSanitize(t *testing.T) {
	long := strings.Repeat("a", 1500)
	req, err := Sanitize(models.AnswerRequest{PlantName: "  Monstera   <b>deliciosa</b> ", Question: long + "\x07", City: "Austin,\tTX"})
	require.NoError(t, err)
	assert.Equal(t, "Monstera bdeliciosa/b", req.PlantName)
	assert.Len(t, []rune(req.Question), MaxQuestionLen)
	assert.Equal(t, "Austin, TX", req.City)
	assert.Equal(t, string(models.CareIndoorPotted), req.CareContext)

	lat := 30.0
	_, err = Sanitize(models.AnswerRequest{PlantName: "x", Question: "y", Latitude: &lat})
	assert.True(t, apperror.IsValidation(err))
}

func TestCompleteWrapsUnavailable(t *testing.T) {
	req := CompletionRequest{Question: "water?", PlantName: "Rose"}

	_, err := newOrchestrator(t, rainyProvider()).complete(context.Background(), req)
	assert.ErrorIs(t, err, apperror.ErrUnavailable)

	failing := &countingCompleter{err: errors.New("model overloaded")}
	_, err = newOrchestrator(t, rainyProvider(), WithCompleter(failing)).complete(context.Background(), req)
	assert.ErrorIs(t, err, apperror.ErrUnavailable)
	assert.Contains(t, err.Error(), "model overloaded")

	blank := &countingCompleter{text: "   "}
	_, err = newOrchestrator(t, rainyProvider(), WithCompleter(blank)).complete(context.Background(), req)
	assert.ErrorIs(t, err, apperror.ErrUnavailable)

	good := &countingCompleter{text: " Water deeply once a week. "}
	text, err := newOrchestrator(t, rainyProvider(), WithCompleter(good)).complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Water deeply once a week.", text)
}

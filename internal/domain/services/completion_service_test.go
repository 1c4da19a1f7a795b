package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"plantcare-http-service/internal/domain/advisor"
	"plantcare-http-service/internal/domain/models"
	"plantcare-http-service/internal/error/apperror"
)

type fakeGenerator struct {
	text     string
	err      error
	model    string
	prompt   string
	settings *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.settings = cfg
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(f.text, genai.RoleModel)}},
	}, nil
}

func TestCompletionPromptCarriesGrounding(t *testing.T) {
	gen := &fakeGenerator{text: "- Water deeply once a week."}
	svc := &CompletionService{models: gen, model: "gemini-test"}

	out, err := svc.Complete(context.Background(), advisor.CompletionRequest{
		Question:       "How often should I water?",
		PlantName:      "Tomato",
		CareContext:    "outdoor_ground",
		Tips:           []models.CareTip{{Topic: "watering", Text: "Keep soil evenly moist."}},
		WeatherSummary: "location: Austin, condition: rain",
		Caveats:        []string{"Heavy rain expected; skip watering."},
	})
	require.NoError(t, err)
	assert.Equal(t, "- Water deeply once a week.", out)

	assert.Equal(t, "gemini-test", gen.model)
	assert.Contains(t, gen.prompt, "Plant: Tomato")
	assert.Contains(t, gen.prompt, "- [watering] Keep soil evenly moist.")
	assert.Contains(t, gen.prompt, "Heavy rain expected; skip watering.")
	assert.Contains(t, gen.prompt, "3-6 short bullet points")
	require.NotNil(t, gen.settings.SystemInstruction)
	assert.Equal(t, float32(0.3), *gen.settings.Temperature)
}

func TestCompletionPromptWithoutWeather(t *testing.T) {
	prompt := completionPrompt(advisor.CompletionRequest{Question: "q", PlantName: "Fern", CareContext: "indoor_potted"})
	assert.Contains(t, prompt, "Weather: n/a")
	assert.NotContains(t, prompt, "Reference tips")
}

func TestGenAIErrorClassification(t *testing.T) {
	assert.True(t, apperror.IsTransient(classifyGenAIError(genai.APIError{Code: 503, Message: "overloaded"})))
	assert.False(t, apperror.IsTransient(classifyGenAIError(genai.APIError{Code: 429, Message: "quota"})))
	assert.True(t, apperror.IsTransient(classifyGenAIError(context.DeadlineExceeded)))
	assert.False(t, apperror.IsTransient(classifyGenAIError(errors.New("bad request"))))
}

func TestModerationParsesVerdict(t *testing.T) {
	gen := &fakeGenerator{text: `{"allowed": false, "categories": ["violence"]}`}
	svc := &ModerationService{models: gen, model: "gemini-test"}

	verdict, err := svc.Classify(context.Background(), "some text")
	require.NoError(t, err)
	assert.False(t, verdict.Allowed)
	assert.Equal(t, []string{"violence"}, verdict.Categories)
	assert.Equal(t, "application/json", gen.settings.ResponseMIMEType)

	gen.text = "not json"
	_, err = svc.Classify(context.Background(), "some text")
	assert.Error(t, err)
}

func TestCompletionDisabledWithoutKey(t *testing.T) {
	svc, err := NewCompletionService(context.Background(), testConfig())
	require.NoError(t, err)
	assert.Nil(t, svc)

	mod, err := NewModerationService(context.Background(), testConfig())
	require.NoError(t, err)
	assert.Nil(t, mod)
}

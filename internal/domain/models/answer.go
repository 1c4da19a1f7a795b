package models

// AnswerSource 回答文本的来源
type AnswerSource string

const (
	SourceRuleOnly         AnswerSource = "rule_only"
	SourceRulePlusWeather  AnswerSource = "rule_plus_weather"
	SourceAIGenerated      AnswerSource = "ai_generated"
	SourceFallbackTemplate AnswerSource = "fallback_template"
)

// AnswerRequest 养护问题请求
type AnswerRequest struct {
	PlantName   string   `json:"plant" example:"Monstera"`
	City        string   `json:"city,omitempty" example:"Austin, TX"`
	Latitude    *float64 `json:"lat,omitempty"`
	Longitude   *float64 `json:"lon,omitempty"`
	Question    string   `json:"question" example:"How often should I water it?"`
	CareContext string   `json:"care_context,omitempty" example:"indoor_potted"`
	CallerKey   string   `json:"-"`
}

// HasLocation 是否提供了位置信息
func (r *AnswerRequest) HasLocation() bool {
	return r.City != "" || (r.Latitude != nil && r.Longitude != nil)
}

// AnswerResponse 养护问题回答
type AnswerResponse struct {
	Answer   string           `json:"answer"`
	Source   AnswerSource     `json:"source"`
	Redacted bool             `json:"redacted,omitempty"`
	Refused  bool             `json:"refused,omitempty"`
	Weather  *WeatherSnapshot `json:"weather,omitempty"`
	Tips     []CareTip        `json:"tips,omitempty"`
}

// CareTip 知识库中的养护建议
type CareTip struct {
	Topic       string `json:"topic"`
	Text        string `json:"text"`
	Specificity string `json:"specificity"` // species, genus, generic, fallback
	MatchedName string `json:"matched_name,omitempty"`
}

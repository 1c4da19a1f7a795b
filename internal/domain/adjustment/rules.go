package adjustment

import (
	"fmt"
	"math"

	"plantcare-http-service/internal/domain/models"
	"plantcare-http-service/internal/domain/weather"
)

// 规则名称
const (
	RuleFreeze        = "freeze"
	RuleCondition     = "condition"
	RulePrecipitation = "precipitation"
	RuleLightFactor   = "light_factor"
	RuleSettled       = "settled" // 天气平稳，撤回已有的天气偏移
)

// Input 单条规则的输入
type Input struct {
	Snapshot    models.WeatherSnapshot
	Factors     weather.Factors
	BaseDays    int
	LightFactor float64
	Policy      Policy
}

// Contribution 单条规则对天数的贡献，正数表示延后浇水
type Contribution struct {
	Rule      string
	Fired     bool
	DeltaDays int
	Reason    string // 该规则成为主导因素时使用的说明
}

// Rule 调整规则
type Rule interface {
	Name() string
	Evaluate(in Input) Contribution
}

// DefaultRules 按优先级排列的规则：霜冻 > 天气类别 > 降水 > 光照系数
func DefaultRules() []Rule {
	return []Rule{FreezeRule{}, ConditionRule{}, PrecipitationRule{}, LightFactorRule{}}
}

// FreezeRule 霜冻风险时延后浇水
type FreezeRule struct{}

func (FreezeRule) Name() string { return RuleFreeze }

func (FreezeRule) Evaluate(in Input) Contribution {
	c := Contribution{Rule: RuleFreeze}
	if !in.Factors.FreezeRisk {
		return c
	}
	c.Fired = true
	c.DeltaDays = in.Policy.FreezeDelayDays
	c.Reason = fmt.Sprintf("Freeze risk (low %.0f°F): the plant slows down in the cold and wet soil can freeze around the roots.", in.Snapshot.TempMinF)
	return c
}

// ConditionRule 极端高温提前，降雪延后
type ConditionRule struct{}

func (ConditionRule) Name() string { return RuleCondition }

func (ConditionRule) Evaluate(in Input) Contribution {
	c := Contribution{Rule: RuleCondition}
	switch in.Snapshot.Condition {
	case models.ConditionExtremeHeat:
		c.Fired = true
		c.DeltaDays = -1
		c.Reason = fmt.Sprintf("Extreme heat (high %.0f°F) dries soil quickly.", in.Snapshot.TempMaxF)
	case models.ConditionSnow:
		c.Fired = true
		c.DeltaDays = 1
		c.Reason = "Snow is forecast and cold, wet soil holds moisture longer."
	}
	return c
}

// PrecipitationRule 根据未来24小时降水量调整
type PrecipitationRule struct{}

func (PrecipitationRule) Name() string { return RulePrecipitation }

func (PrecipitationRule) Evaluate(in Input) Contribution {
	c := Contribution{Rule: RulePrecipitation}
	f := in.Factors
	switch {
	case f.HeavyRain:
		c.Fired = true
		c.DeltaDays = in.Policy.HeavyRainDelayDays
		c.Reason = fmt.Sprintf("Heavy rain expected (%.2f in over the next 24 hours) will water the plant for you.", f.PrecipitationInches)
	case f.LightRain:
		c.Fired = true
		c.DeltaDays = 1
		c.Reason = fmt.Sprintf("Light rain expected (%.2f in over the next 24 hours).", f.PrecipitationInches)
	case f.HotAndDry:
		c.Fired = true
		c.DeltaDays = -1
		c.Reason = fmt.Sprintf("Hot and dry (high %.0f°F with no meaningful rain).", f.TempMaxF)
	}
	return c
}

// LightFactorRule 根据光照系数微调
type LightFactorRule struct{}

func (LightFactorRule) Name() string { return RuleLightFactor }

func (LightFactorRule) Evaluate(in Input) Contribution {
	c := Contribution{Rule: RuleLightFactor}
	delta := int(math.Round((1 - in.LightFactor) * float64(in.BaseDays) * in.Policy.LightFactorWeight))
	if delta == 0 {
		return c
	}
	c.Fired = true
	c.DeltaDays = delta
	if delta < 0 {
		c.Reason = fmt.Sprintf("%s conditions increase evaporation.", conditionLabel(in.Snapshot.Condition))
	} else {
		c.Reason = fmt.Sprintf("%s conditions reduce evaporation.", conditionLabel(in.Snapshot.Condition))
	}
	return c
}

var lightBase = map[models.WeatherCondition]float64{
	models.ConditionClear:       1.15,
	models.ConditionClouds:      0.90,
	models.ConditionRain:        0.85,
	models.ConditionSnow:        0.75,
	models.ConditionFreeze:      0.75,
	models.ConditionExtremeHeat: 1.30,
	models.ConditionUnknown:     1.0,
}

// LightFactor 光照系数：天气类别基准值减去降水修正，限制在 [0.5, 1.5]，保留两位小数
func LightFactor(s models.WeatherSnapshot) float64 {
	base, ok := lightBase[s.Condition]
	if !ok {
		base = 1.0
	}
	factor := base - 0.1*math.Min(math.Max(s.PrecipitationInches, 0), 2.0)
	factor = math.Max(0.5, math.Min(1.5, factor))
	return math.Round(factor*100) / 100
}

func conditionLabel(c models.WeatherCondition) string {
	switch c {
	case models.ConditionClear:
		return "Clear, sunny"
	case models.ConditionClouds:
		return "Cloudy"
	case models.ConditionRain:
		return "Rainy"
	case models.ConditionSnow:
		return "Snowy"
	case models.ConditionFreeze:
		return "Freezing"
	case models.ConditionExtremeHeat:
		return "Very hot"
	}
	return "Current"
}

package weather

import (
	"fmt"
	"math"
	"strings"
	"time"

	"plantcare-http-service/internal/domain/models"
)

const (
	freezeTempF      = 32.0
	extremeHeatTempF = 95.0
)

// Observation 天气服务返回的原始预报，由 Normalize 转换为快照
type Observation struct {
	Location            string
	Date                time.Time
	Category            string // 服务商的天气大类，如 "Rain"、"Clear"
	PrecipitationInches float64
	TempMinF            float64
	TempMaxF            float64
	Humidity            int
	CloudCover          int
	FreezeFlag          bool // 服务商给出的霜冻预警
}

var categoryMap = map[string]models.WeatherCondition{
	"clear":        models.ConditionClear,
	"clouds":       models.ConditionClouds,
	"mist":         models.ConditionClouds,
	"fog":          models.ConditionClouds,
	"haze":         models.ConditionClouds,
	"rain":         models.ConditionRain,
	"drizzle":      models.ConditionRain,
	"thunderstorm": models.ConditionRain,
	"squall":       models.ConditionRain,
	"snow":         models.ConditionSnow,
	"sleet":        models.ConditionSnow,
}

// Normalize 把原始预报映射为快照：霜冻优先于其他天气，其次是极端高温
func Normalize(obs Observation) models.WeatherSnapshot {
	condition, ok := categoryMap[strings.ToLower(strings.TrimSpace(obs.Category))]
	if !ok {
		condition = models.ConditionUnknown
	}

	freeze := obs.FreezeFlag || obs.TempMinF <= freezeTempF
	switch {
	case freeze:
		condition = models.ConditionFreeze
	case obs.TempMaxF >= extremeHeatTempF:
		condition = models.ConditionExtremeHeat
	}

	return models.WeatherSnapshot{
		Location:            obs.Location,
		ForecastDate:        obs.Date,
		PrecipitationInches: round2(math.Max(0, obs.PrecipitationInches)),
		TempMinF:            round1(obs.TempMinF),
		TempMaxF:            round1(obs.TempMaxF),
		Humidity:            clampPercent(obs.Humidity),
		CloudCover:          clampPercent(obs.CloudCover),
		Condition:           condition,
		FreezeRisk:          freeze,
	}
}

// Thresholds 判断降水和高温的阈值
type Thresholds struct {
	HeavyRainInches float64
	LightRainInches float64
	DryInches       float64
	HotTempF        float64
}

// DefaultThresholds 默认阈值
func DefaultThresholds() Thresholds {
	return Thresholds{HeavyRainInches: 0.5, LightRainInches: 0.25, DryInches: 0.05, HotTempF: 90}
}

// Factors 从快照中提取的决策因素
type Factors struct {
	Condition           models.WeatherCondition
	PrecipitationInches float64
	TempMaxF            float64
	HeavyRain           bool
	LightRain           bool // 达到小雨阈值但未达到大雨阈值
	NearZeroPrecip      bool
	HotAndDry           bool
	FreezeRisk          bool
}

// FactorsOf 计算决策因素
func FactorsOf(s models.WeatherSnapshot, th Thresholds) Factors {
	p := s.PrecipitationInches
	f := Factors{
		Condition:           s.Condition,
		PrecipitationInches: p,
		TempMaxF:            s.TempMaxF,
		HeavyRain:           p >= th.HeavyRainInches,
		NearZeroPrecip:      p <= th.DryInches,
		FreezeRisk:          s.FreezeRisk,
	}
	f.LightRain = !f.HeavyRain && p >= th.LightRainInches
	f.HotAndDry = f.NearZeroPrecip && s.TempMaxF >= th.HotTempF
	return f
}

// Caveats 根据天气生成对养护建议的提示；天气平稳时返回空
func Caveats(s models.WeatherSnapshot, th Thresholds, sheltered bool) []string {
	f := FactorsOf(s, th)
	where := s.Location
	if where == "" {
		where = "your area"
	}

	var out []string
	if f.FreezeRisk {
		if sheltered {
			out = append(out, fmt.Sprintf("Freeze risk in %s (low %.0f°F): keep the plant away from cold windows and drafts.", where, s.TempMinF))
		} else {
			out = append(out, fmt.Sprintf("Freeze risk in %s (low %.0f°F): hold off watering, mulch or cover the plant and move pots under shelter.", where, s.TempMinF))
		}
	}
	if sheltered {
		if s.Condition == models.ConditionExtremeHeat {
			out = append(out, fmt.Sprintf("Extreme heat in %s (high %.0f°F): indoor air dries soil faster, so check moisture more often.", where, s.TempMaxF))
		}
		return out
	}

	switch {
	case f.HeavyRain:
		out = append(out, fmt.Sprintf("About %.2f in of rain is forecast in %s over the next 24 hours: skip watering outdoor plants and check drainage.", f.PrecipitationInches, where))
	case f.LightRain:
		out = append(out, fmt.Sprintf("Light rain (%.2f in) is forecast in %s: check the soil before watering.", f.PrecipitationInches, where))
	case f.HotAndDry:
		out = append(out, fmt.Sprintf("Hot and dry in %s (high %.0f°F, no meaningful rain): check soil daily and water early in the morning.", where, s.TempMaxF))
	}
	if s.Condition == models.ConditionExtremeHeat && !f.HotAndDry {
		out = append(out, fmt.Sprintf("Extreme heat in %s (high %.0f°F): give afternoon shade and water deeply.", where, s.TempMaxF))
	}
	if s.Condition == models.ConditionSnow && !f.FreezeRisk {
		out = append(out, fmt.Sprintf("Snow is forecast in %s: plants need less water while it is cold and wet.", where))
	}
	return out
}

// Summary 简短的天气描述，用于AI提示词
func Summary(s models.WeatherSnapshot) string {
	return fmt.Sprintf("location: %s, condition: %s, precipitation_next_24h_in: %.2f, temp_f: %.0f-%.0f, humidity: %d%%, cloud_cover: %d%%, freeze_risk: %t",
		s.Location, s.Condition, s.PrecipitationInches, s.TempMinF, s.TempMaxF, s.Humidity, s.CloudCover, s.FreezeRisk)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

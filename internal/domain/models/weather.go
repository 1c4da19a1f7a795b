package models

import "time"

// WeatherCondition 天气类别
type WeatherCondition string

const (
	ConditionClear       WeatherCondition = "clear"
	ConditionClouds      WeatherCondition = "clouds"
	ConditionRain        WeatherCondition = "rain"
	ConditionSnow        WeatherCondition = "snow"
	ConditionExtremeHeat WeatherCondition = "extreme_heat"
	ConditionFreeze      WeatherCondition = "freeze"
	ConditionUnknown     WeatherCondition = "unknown"
)

// WeatherSnapshot 某地未来24小时的天气快照，获取后不可变，不做持久化
type WeatherSnapshot struct {
	Location            string           `json:"location"`
	ForecastDate        time.Time        `json:"forecast_date"`
	PrecipitationInches float64          `json:"precipitation_inches"`
	TempMinF            float64          `json:"temp_min_f"`
	TempMaxF            float64          `json:"temp_max_f"`
	Humidity            int              `json:"humidity"`
	CloudCover          int              `json:"cloud_cover"` // 0-100
	Condition           WeatherCondition `json:"condition"`
	FreezeRisk          bool             `json:"freeze_risk"`
}

package adjustment

import "plantcare-http-service/internal/domain/weather"

// Policy 调整策略参数，全部来自配置
type Policy struct {
	HeavyRainInches    float64
	LightRainInches    float64
	DryInches          float64
	HotTempF           float64
	MaxShiftRatio      float64 // 单次调整最多为基础间隔的比例
	LightFactorWeight  float64
	FreezeDelayDays    int
	HeavyRainDelayDays int
}

// DefaultPolicy 默认策略
func DefaultPolicy() Policy {
	return Policy{
		HeavyRainInches:    0.5,
		LightRainInches:    0.25,
		DryInches:          0.05,
		HotTempF:           90,
		MaxShiftRatio:      0.5,
		LightFactorWeight:  0.5,
		FreezeDelayDays:    2,
		HeavyRainDelayDays: 2,
	}
}

// Thresholds 转换为天气因素阈值
func (p Policy) Thresholds() weather.Thresholds {
	return weather.Thresholds{
		HeavyRainInches: p.HeavyRainInches,
		LightRainInches: p.LightRainInches,
		DryInches:       p.DryInches,
		HotTempF:        p.HotTempF,
	}
}

// ClampBounds 返回允许的最大延后和最大提前天数
func (p Policy) ClampBounds(baseDays int) (later, sooner int) {
	later = int(float64(baseDays) * p.MaxShiftRatio)
	if later < 1 {
		later = 1
	}
	sooner = later
	if baseDays-1 < sooner {
		sooner = baseDays - 1
	}
	if sooner < 0 {
		sooner = 0
	}
	return later, sooner
}

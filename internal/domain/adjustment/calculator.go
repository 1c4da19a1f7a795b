// Package adjustment 根据天气为浇水提醒计算到期时间调整。
// 计算是纯函数：相同的提醒和天气快照总是得到相同的结果。
package adjustment

import (
	"fmt"
	"math"

	"plantcare-http-service/internal/domain/models"
	"plantcare-http-service/internal/domain/weather"
)

// Proposal 调整建议，尚未持久化
type Proposal struct {
	DeltaDays int
	Reason    string
	Details   models.AdjustmentDetails
}

// Calculator 按优先级依次执行规则
type Calculator struct {
	rules  []Rule
	policy Policy
}

// NewCalculator 创建计算器，rules 为空时使用默认规则
func NewCalculator(policy Policy, rules ...Rule) *Calculator {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Calculator{rules: rules, policy: policy}
}

// Calculate 使用默认规则计算
func Calculate(reminder models.Reminder, snapshot models.WeatherSnapshot, policy Policy) (Proposal, bool) {
	return NewCalculator(policy).Calculate(reminder, snapshot)
}

// Calculate 返回调整建议；结果为0天时返回 false。
// 限幅作用于本周期的天气偏移总量：建议值是目标偏移与已接受偏移之差，
// 同一天气反复计算、接受不会让周期无限延长或缩短。
func (c *Calculator) Calculate(reminder models.Reminder, snapshot models.WeatherSnapshot) (Proposal, bool) {
	base := reminder.BaseFrequencyDays
	if base < 1 {
		return Proposal{}, false
	}

	in := Input{
		Snapshot:    snapshot,
		Factors:     weather.FactorsOf(snapshot, c.policy.Thresholds()),
		BaseDays:    base,
		LightFactor: LightFactor(snapshot),
		Policy:      c.policy,
	}

	outcomes := make([]models.RuleOutcome, 0, len(c.rules))
	fired := make([]Contribution, 0, len(c.rules))
	raw := 0
	for _, rule := range c.rules {
		contrib := rule.Evaluate(in)
		outcome := models.RuleOutcome{Rule: rule.Name(), Fired: contrib.Fired, DeltaDays: contrib.DeltaDays}
		if contrib.Fired {
			// 霜冻风险时丢弃所有提前浇水的因素
			if in.Factors.FreezeRisk && contrib.DeltaDays < 0 {
				outcome.Note = "dropped: freeze risk outranks drying factors"
			} else {
				raw += contrib.DeltaDays
				fired = append(fired, contrib)
			}
		}
		outcomes = append(outcomes, outcome)
	}

	later, sooner := c.policy.ClampBounds(base)
	target := raw
	if target > later {
		target = later
	}
	if target < -sooner {
		target = -sooner
	}
	prior := reminder.WeatherOffsetDays
	delta := target - prior
	if delta == 0 {
		return Proposal{}, false
	}

	dominant := dominantContribution(fired, target)
	waterNeed := int(math.Round((in.LightFactor - 1) * 100))

	reason := composeReason(dominant, delta, waterNeed)
	if prior != 0 {
		reason = composeRevisedReason(dominant, prior, target, delta, waterNeed)
	}

	return Proposal{
		DeltaDays: delta,
		Reason:    reason,
		Details: models.AdjustmentDetails{
			Condition:           snapshot.Condition,
			PrecipitationInches: snapshot.PrecipitationInches,
			TempMinF:            snapshot.TempMinF,
			TempMaxF:            snapshot.TempMaxF,
			FreezeRisk:          snapshot.FreezeRisk,
			LightFactor:         in.LightFactor,
			WaterNeedPercent:    waterNeed,
			DominantRule:        dominant.Rule,
			Contributions:       outcomes,
			RawDeltaDays:        raw,
			ClampDays:           later,
			PriorOffsetDays:     prior,
			TargetOffsetDays:    target,
			BaseFrequencyDays:   base,
		},
	}, true
}

// 主导因素：符号与目标偏移一致的最高优先级规则。
// 目标为0时（天气转为平稳）没有主导规则。
func dominantContribution(fired []Contribution, target int) Contribution {
	if target == 0 || len(fired) == 0 {
		return Contribution{Rule: RuleSettled, Reason: "The forecast no longer calls for a weather shift."}
	}
	for _, c := range fired {
		if (c.DeltaDays > 0) == (target > 0) && c.DeltaDays != 0 {
			return c
		}
	}
	return fired[0]
}

func composeReason(dominant Contribution, delta, waterNeed int) string {
	return dominant.Reason + " " + actionSentence(delta) + " " + needSentence(waterNeed)
}

// 本周期已有天气偏移时，说明从原偏移调整到新的目标
func composeRevisedReason(dominant Contribution, prior, target, delta, waterNeed int) string {
	var want string
	switch {
	case target > 0:
		want = fmt.Sprintf("watering %s later than the base schedule", pluralDays(target))
	case target < 0:
		want = fmt.Sprintf("watering %s earlier than the base schedule", pluralDays(-target))
	default:
		want = "the base schedule"
	}
	return fmt.Sprintf("%s Current weather calls for %s (currently %+d days). %s %s",
		dominant.Reason, want, prior, actionSentence(delta), needSentence(waterNeed))
}

func actionSentence(delta int) string {
	if delta > 0 {
		return fmt.Sprintf("Watering pushed back %s.", pluralDays(delta))
	}
	return fmt.Sprintf("Watering moved %s earlier.", pluralDays(-delta))
}

func needSentence(waterNeed int) string {
	switch {
	case waterNeed < 0:
		return fmt.Sprintf("Estimated water need is %d%% less than usual.", -waterNeed)
	case waterNeed > 0:
		return fmt.Sprintf("Estimated water need is %d%% more than usual.", waterNeed)
	}
	return "Estimated water need is about the same as usual."
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

// Eligible 只有户外植物的浇水提醒会根据天气调整
func Eligible(reminder *models.Reminder, careContext models.CareContext) (bool, string) {
	switch {
	case reminder.TaskKind != models.TaskWatering:
		return false, "weather adjustments only apply to watering reminders"
	case careContext.Sheltered():
		return false, "weather adjustments only apply to outdoor plants"
	case careContext != models.CareOutdoorGround && careContext != models.CareOutdoorPotted:
		return false, "unknown care context"
	case reminder.SkipWeatherAdjustment:
		return false, "weather adjustment disabled for this reminder"
	case !reminder.Active:
		return false, "reminder is inactive"
	}
	return true, ""
}

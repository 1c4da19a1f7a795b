package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// AdjustmentStatus 调整建议状态
type AdjustmentStatus string

const (
	AdjustmentPending   AdjustmentStatus = "pending"
	AdjustmentAccepted  AdjustmentStatus = "accepted"
	AdjustmentDismissed AdjustmentStatus = "dismissed"
)

// AdjustmentDetails 调整依据，记录所有参与计算的因素
type AdjustmentDetails struct {
	Condition           WeatherCondition `json:"condition"`
	PrecipitationInches float64          `json:"precipitation_inches"`
	TempMinF            float64          `json:"temp_min_f"`
	TempMaxF            float64          `json:"temp_max_f"`
	FreezeRisk          bool             `json:"freeze_risk"`
	LightFactor         float64          `json:"light_factor"`
	WaterNeedPercent    int              `json:"water_need_percent"`
	DominantRule        string           `json:"dominant_rule"`
	Contributions       []RuleOutcome    `json:"contributions"`
	RawDeltaDays        int              `json:"raw_delta_days"`
	ClampDays           int              `json:"clamp_days"`
	PriorOffsetDays     int              `json:"prior_offset_days"`  // 本周期已接受的天气偏移
	TargetOffsetDays    int              `json:"target_offset_days"` // 按当前天气本周期应有的天气偏移
	BaseFrequencyDays   int              `json:"base_frequency_days"`
}

// RuleOutcome 单条规则的计算结果
type RuleOutcome struct {
	Rule      string `json:"rule"`
	Fired     bool   `json:"fired"`
	DeltaDays int    `json:"delta_days"`
	Note      string `json:"note,omitempty"`
}

// Value 实现 driver.Valuer，以JSON存储
func (d AdjustmentDetails) Value() (driver.Value, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner
func (d *AdjustmentDetails) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	case nil:
		*d = AdjustmentDetails{}
		return nil
	default:
		return errors.New("adjustment details: unsupported column type")
	}
}

// Adjustment 针对某个提醒的到期时间调整建议
// PendingKey 仅在 pending 状态下等于 ReminderID，唯一索引保证每个提醒最多一个待处理建议
type Adjustment struct {
	BaseModel
	ReminderID string            `gorm:"type:varchar(36);index;not null" json:"reminder_id"`
	DeltaDays  int               `gorm:"not null" json:"delta_days"`
	Reason     string            `gorm:"type:varchar(512);not null" json:"reason"`
	Details    AdjustmentDetails `gorm:"type:text" json:"details"`
	Status     AdjustmentStatus  `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	PendingKey *string           `gorm:"type:varchar(36);uniqueIndex" json:"-"`
	ResolvedAt *time.Time        `json:"resolved_at,omitempty"`
}

// IsPending 是否仍待处理
func (a *Adjustment) IsPending() bool {
	return a.Status == AdjustmentPending
}

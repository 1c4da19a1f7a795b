package models

import "time"

// TaskKind 提醒任务类型
type TaskKind string

const (
	TaskWatering    TaskKind = "watering"
	TaskFertilizing TaskKind = "fertilizing"
	TaskMisting     TaskKind = "misting"
	TaskPruning     TaskKind = "pruning"
	TaskRepotting   TaskKind = "repotting"
	TaskInspection  TaskKind = "inspection"
	TaskCustom      TaskKind = "custom"
)

// Valid 是否为已知任务类型
func (k TaskKind) Valid() bool {
	switch k {
	case TaskWatering, TaskFertilizing, TaskMisting, TaskPruning, TaskRepotting, TaskInspection, TaskCustom:
		return true
	}
	return false
}

// Reminder 表示植物的周期性养护提醒
// NextDueAt 始终等于 LastCompletedAt + EffectiveFrequencyDays 天
type Reminder struct {
	BaseModel
	PlantID               string    `gorm:"type:varchar(36);index;not null" json:"plant_id"`
	TaskKind              TaskKind  `gorm:"type:varchar(20);not null" json:"task_kind"`
	BaseFrequencyDays     int       `gorm:"not null" json:"base_frequency_days"`
	CycleOffsetDays       int       `gorm:"not null;default:0" json:"cycle_offset_days"`   // 本周期内已接受的调整和延后天数之和
	WeatherOffsetDays     int       `gorm:"not null;default:0" json:"weather_offset_days"` // 其中来自天气调整的部分，不含延后
	NextDueAt             time.Time `gorm:"index" json:"next_due_at"`
	LastCompletedAt       time.Time `json:"last_completed_at"`
	SkipWeatherAdjustment bool      `gorm:"default:false" json:"skip_weather_adjustment"`
	Active                bool      `gorm:"default:true" json:"active"`

	// Relations - 关联关系
	Plant *Plant `gorm:"foreignKey:PlantID" json:"plant,omitempty"`
}

// EffectiveFrequencyDays 当前周期的实际间隔天数
func (r *Reminder) EffectiveFrequencyDays() int {
	return r.BaseFrequencyDays + r.CycleOffsetDays
}

// ExpectedNextDue 根据上次完成时间推算的到期时间
func (r *Reminder) ExpectedNextDue() time.Time {
	return r.LastCompletedAt.AddDate(0, 0, r.EffectiveFrequencyDays())
}

// Shift 平移当前周期的到期时间
func (r *Reminder) Shift(days int) {
	r.CycleOffsetDays += days
	r.NextDueAt = r.NextDueAt.AddDate(0, 0, days)
}

// ShiftForWeather 应用天气调整，同时记录天气偏移
func (r *Reminder) ShiftForWeather(days int) {
	r.Shift(days)
	r.WeatherOffsetDays += days
}

// ClearWeather 撤销本周期的天气偏移，恢复原计划；延后的天数保留
func (r *Reminder) ClearWeather() int {
	days := r.WeatherOffsetDays
	r.Shift(-days)
	r.WeatherOffsetDays = 0
	return days
}

// Complete 完成本周期并开始新的周期
func (r *Reminder) Complete(at time.Time) {
	r.LastCompletedAt = at
	r.CycleOffsetDays = 0
	r.WeatherOffsetDays = 0
	r.NextDueAt = at.AddDate(0, 0, r.BaseFrequencyDays)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"plantcare-http-service/internal/domain/adjustment"
	"plantcare-http-service/internal/domain/models"
	"plantcare-http-service/internal/domain/weather"
	"plantcare-http-service/internal/error/apperror"
	"plantcare-http-service/internal/infrastructure/config"
	"plantcare-http-service/internal/infrastructure/database"
	"plantcare-http-service/internal/infrastructure/logger"
)

const (
	minSnoozeDays    = 1
	maxSnoozeDays    = 30
	maxFrequencyDays = 365
	maxUpcomingDays  = 30
)

// InterfaceReminderService 提醒服务接口
type InterfaceReminderService interface {
	CreateReminder(ctx context.Context, plantID string, input CreateReminderInput) (*models.Reminder, error)
	GetReminder(ctx context.Context, id string) (*models.Reminder, error)
	ComputeAdjustment(ctx context.Context, reminderID string) (*models.Adjustment, error)
	PendingAdjustment(ctx context.Context, reminderID string) (*models.Adjustment, error)
	AcceptAdjustment(ctx context.Context, adjustmentID string) (*models.Adjustment, *models.Reminder, error)
	DismissAdjustment(ctx context.Context, adjustmentID string) (*models.Adjustment, error)
	CompleteReminder(ctx context.Context, id string) (*models.Reminder, error)
	SnoozeReminder(ctx context.Context, id string, days int) (*models.Reminder, error)
	BatchAdjust(ctx context.Context, userID string) (BatchStats, error)
	ClearWeatherAdjustment(ctx context.Context, id string) (*models.Reminder, error)
	DueReminders(ctx context.Context, userID string) ([]models.Reminder, error)
	UpcomingReminders(ctx context.Context, userID string, days int) ([]models.Reminder, error)
	ReminderStats(ctx context.Context, userID string) (ReminderStats, error)
}

// CreateReminderInput 创建提醒的参数
type CreateReminderInput struct {
	TaskKind              string     `json:"task_kind" binding:"required"`
	BaseFrequencyDays     int        `json:"base_frequency_days" binding:"required"`
	StartAt               *time.Time `json:"start_at"`
	SkipWeatherAdjustment bool       `json:"skip_weather_adjustment"`
}

// BatchStats 批量调整统计
type BatchStats struct {
	Checked  int `json:"checked"`
	Proposed int `json:"proposed"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

// ReminderStats 用户提醒统计
type ReminderStats struct {
	Total              int64 `json:"total_reminders"`
	Active             int64 `json:"active_reminders"`
	DueToday           int64 `json:"due_today"`
	Upcoming7Days      int64 `json:"upcoming_7_days"`
	WeatherAdjusted    int64 `json:"weather_adjusted"`
	PendingAdjustments int64 `json:"pending_adjustments"`
}

// ReminderService 提醒和天气调整服务
type ReminderService struct {
	DB          *gorm.DB
	Config      *config.Config
	Weather     *weather.Context
	Calculator  *adjustment.Calculator
	Concurrency int
	now         func() time.Time
}

// AdjustmentPolicy 从配置构造调整策略
func AdjustmentPolicy(cfg *config.Config) adjustment.Policy {
	a := cfg.Adjust
	if a.MaxShiftRatio <= 0 {
		return adjustment.DefaultPolicy()
	}
	return adjustment.Policy{
		HeavyRainInches:    a.HeavyRainInches,
		LightRainInches:    a.LightRainInches,
		DryInches:          a.DryInches,
		HotTempF:           a.HotTempF,
		MaxShiftRatio:      a.MaxShiftRatio,
		LightFactorWeight:  a.LightFactorWeight,
		FreezeDelayDays:    a.FreezeDelayDays,
		HeavyRainDelayDays: a.HeavyRainDelayDays,
	}
}

// NewReminderService 创建提醒服务
func NewReminderService(db *gorm.DB, cfg *config.Config, wctx *weather.Context) InterfaceReminderService {
	concurrency := cfg.BatchConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &ReminderService{
		DB:          db,
		Config:      cfg,
		Weather:     wctx,
		Calculator:  adjustment.NewCalculator(AdjustmentPolicy(cfg)),
		Concurrency: concurrency,
		now:         time.Now,
	}
}

// 1 CreateReminder 为植物创建提醒
func (s *ReminderService) CreateReminder(ctx context.Context, plantID string, input CreateReminderInput) (*models.Reminder, error) {
	kind := models.TaskKind(input.TaskKind)
	if !kind.Valid() {
		return nil, apperror.NewValidation("task_kind", fmt.Sprintf("unknown task kind %q", input.TaskKind))
	}
	if input.BaseFrequencyDays < 1 || input.BaseFrequencyDays > maxFrequencyDays {
		return nil, apperror.NewValidation("base_frequency_days", fmt.Sprintf("base_frequency_days must be between 1 and %d", maxFrequencyDays))
	}

	var plant models.Plant
	if err := s.DB.WithContext(ctx).First(&plant, "id = ?", plantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}

	start := s.now()
	if input.StartAt != nil {
		start = *input.StartAt
	}
	reminder := &models.Reminder{
		PlantID:               plant.ID,
		TaskKind:              kind,
		BaseFrequencyDays:     input.BaseFrequencyDays,
		SkipWeatherAdjustment: input.SkipWeatherAdjustment,
		Active:                true,
	}
	reminder.Complete(start)

	if err := s.DB.WithContext(ctx).Create(reminder).Error; err != nil {
		return nil, fmt.Errorf("创建提醒失败: %w", err)
	}
	logger.Info("创建提醒: id=%s, plant=%s, kind=%s, every=%dd", reminder.ID, plant.ID, kind, reminder.BaseFrequencyDays)
	return reminder, nil
}

// 2 GetReminder 获取提醒及其植物
func (s *ReminderService) GetReminder(ctx context.Context, id string) (*models.Reminder, error) {
	return s.loadReminder(s.DB.WithContext(ctx), id)
}

// 3 ComputeAdjustment 根据天气计算调整建议。
// 不需要调整、天气不可用或提醒不适用时返回 nil, nil。
// 已有待处理建议时：内容相同则返回原建议，不同则返回 InvariantViolation。
func (s *ReminderService) ComputeAdjustment(ctx context.Context, reminderID string) (*models.Adjustment, error) {
	reminder, err := s.loadReminder(s.DB.WithContext(ctx), reminderID)
	if err != nil {
		return nil, err
	}
	if reminder.Plant == nil {
		return nil, fmt.Errorf("提醒 %s 缺少植物信息", reminderID)
	}

	if ok, why := adjustment.Eligible(reminder, reminder.Plant.CareContext); !ok {
		logger.Info("跳过天气调整: reminder=%s, reason=%s", reminderID, why)
		return nil, nil
	}

	result := s.Weather.FetchRaw(ctx, reminder.Plant.City, reminder.Plant.Latitude, reminder.Plant.Longitude)
	if err := result.Err(); err != nil {
		logger.Warning("不生成调整: reminder=%s, err=%v", reminderID, err)
		return nil, nil
	}

	proposal, ok := s.Calculator.Calculate(*reminder, *result.Snapshot)
	if !ok {
		return nil, nil
	}

	existing, err := s.findPending(s.DB.WithContext(ctx), reminderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return resolveAgainstPending(existing, proposal)
	}

	key := reminder.ID
	adj := &models.Adjustment{
		ReminderID: reminder.ID,
		DeltaDays:  proposal.DeltaDays,
		Reason:     proposal.Reason,
		Details:    proposal.Details,
		Status:     models.AdjustmentPending,
		PendingKey: &key,
	}
	if err := s.DB.WithContext(ctx).Create(adj).Error; err != nil {
		// 并发创建时唯一索引拒绝第二条待处理建议
		existing, findErr := s.findPending(s.DB.WithContext(ctx), reminderID)
		if findErr == nil && existing != nil {
			return resolveAgainstPending(existing, proposal)
		}
		return nil, fmt.Errorf("保存调整建议失败: %w", err)
	}

	logger.Info("生成调整建议: reminder=%s, delta=%d, rule=%s", reminderID, adj.DeltaDays, adj.Details.DominantRule)
	return adj, nil
}

func resolveAgainstPending(existing *models.Adjustment, proposal adjustment.Proposal) (*models.Adjustment, error) {
	if existing.DeltaDays == proposal.DeltaDays && existing.Reason == proposal.Reason {
		return existing, nil
	}
	return nil, apperror.NewInvariant("reminder %s already has a pending adjustment (%+d days); accept or dismiss it first",
		existing.ReminderID, existing.DeltaDays)
}

// 4 PendingAdjustment 获取提醒的待处理建议，没有时返回 nil, nil
func (s *ReminderService) PendingAdjustment(ctx context.Context, reminderID string) (*models.Adjustment, error) {
	db := s.DB.WithContext(ctx)
	if err := db.Select("id").First(&models.Reminder{}, "id = ?", reminderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	return s.findPending(db, reminderID)
}

// 5 AcceptAdjustment 接受建议并平移提醒的到期时间
func (s *ReminderService) AcceptAdjustment(ctx context.Context, adjustmentID string) (*models.Adjustment, *models.Reminder, error) {
	var adj models.Adjustment
	var reminder *models.Reminder

	err := database.WithTransaction(ctx, s.DB, func(tx *gorm.DB) error {
		if err := s.resolve(tx, adjustmentID, models.AdjustmentAccepted); err != nil {
			return err
		}
		if err := tx.First(&adj, "id = ?", adjustmentID).Error; err != nil {
			return err
		}

		var err error
		reminder, err = s.loadReminder(tx, adj.ReminderID)
		if err != nil {
			return err
		}
		reminder.ShiftForWeather(adj.DeltaDays)
		return tx.Model(&models.Reminder{}).Where("id = ?", reminder.ID).Updates(map[string]interface{}{
			"cycle_offset_days":   reminder.CycleOffsetDays,
			"weather_offset_days": reminder.WeatherOffsetDays,
			"next_due_at":         reminder.NextDueAt,
		}).Error
	})
	if err != nil {
		return nil, nil, err
	}

	logger.Info("接受调整建议: adjustment=%s, reminder=%s, delta=%d, next_due=%s",
		adj.ID, reminder.ID, adj.DeltaDays, reminder.NextDueAt.Format(time.RFC3339))
	return &adj, reminder, nil
}

// 6 DismissAdjustment 忽略建议，提醒保持不变
func (s *ReminderService) DismissAdjustment(ctx context.Context, adjustmentID string) (*models.Adjustment, error) {
	var adj models.Adjustment
	err := database.WithTransaction(ctx, s.DB, func(tx *gorm.DB) error {
		if err := s.resolve(tx, adjustmentID, models.AdjustmentDismissed); err != nil {
			return err
		}
		return tx.First(&adj, "id = ?", adjustmentID).Error
	})
	if err != nil {
		return nil, err
	}
	logger.Info("忽略调整建议: adjustment=%s, reminder=%s", adj.ID, adj.ReminderID)
	return &adj, nil
}

// 7 CompleteReminder 完成本周期；旧周期的待处理建议一并忽略
func (s *ReminderService) CompleteReminder(ctx context.Context, id string) (*models.Reminder, error) {
	var reminder *models.Reminder
	err := database.WithTransaction(ctx, s.DB, func(tx *gorm.DB) error {
		var err error
		reminder, err = s.loadReminder(tx, id)
		if err != nil {
			return err
		}
		reminder.Complete(s.now())
		if err := tx.Model(&models.Reminder{}).Where("id = ?", id).Updates(map[string]interface{}{
			"last_completed_at":   reminder.LastCompletedAt,
			"cycle_offset_days":   0,
			"weather_offset_days": 0,
			"next_due_at":         reminder.NextDueAt,
		}).Error; err != nil {
			return err
		}
		return s.dismissPending(tx, id)
	})
	if err != nil {
		return nil, err
	}
	logger.Info("完成提醒: id=%s, next_due=%s", id, reminder.NextDueAt.Format(time.RFC3339))
	return reminder, nil
}

// 8 SnoozeReminder 延后当前周期，天数并入周期偏移
func (s *ReminderService) SnoozeReminder(ctx context.Context, id string, days int) (*models.Reminder, error) {
	if days < minSnoozeDays || days > maxSnoozeDays {
		return nil, apperror.NewValidation("days", fmt.Sprintf("days must be between %d and %d", minSnoozeDays, maxSnoozeDays))
	}

	var reminder *models.Reminder
	err := database.WithTransaction(ctx, s.DB, func(tx *gorm.DB) error {
		var err error
		reminder, err = s.loadReminder(tx, id)
		if err != nil {
			return err
		}
		reminder.Shift(days)
		return tx.Model(&models.Reminder{}).Where("id = ?", id).Updates(map[string]interface{}{
			"cycle_offset_days": reminder.CycleOffsetDays,
			"next_due_at":       reminder.NextDueAt,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	logger.Info("延后提醒: id=%s, days=%d", id, days)
	return reminder, nil
}

// 9 BatchAdjust 为用户所有启用的提醒计算调整建议。
// 单个提醒失败只计数，不中断其他提醒。
func (s *ReminderService) BatchAdjust(ctx context.Context, userID string) (BatchStats, error) {
	var ids []string
	if err := s.DB.WithContext(ctx).Model(&models.Reminder{}).
		Joins("JOIN plants ON plants.id = reminders.plant_id").
		Where("plants.user_id = ? AND reminders.active = ?", userID, true).
		Order("reminders.next_due_at").
		Pluck("reminders.id", &ids).Error; err != nil {
		return BatchStats{}, fmt.Errorf("查询提醒失败: %w", err)
	}

	var proposed, skipped, failed int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			adj, err := s.ComputeAdjustment(gctx, id)
			switch {
			case err != nil:
				atomic.AddInt64(&failed, 1)
				logger.Warning("批量调整失败: reminder=%s, err=%v", id, err)
			case adj == nil:
				atomic.AddInt64(&skipped, 1)
			default:
				atomic.AddInt64(&proposed, 1)
			}
			return nil
		})
	}
	_ = g.Wait()

	stats := BatchStats{
		Checked:  len(ids),
		Proposed: int(proposed),
		Skipped:  int(skipped),
		Errors:   int(failed),
	}
	logger.Info("批量调整完成: user=%s, checked=%d, proposed=%d, skipped=%d, errors=%d",
		userID, stats.Checked, stats.Proposed, stats.Skipped, stats.Errors)
	return stats, ctx.Err()
}

// 10 ClearWeatherAdjustment 撤销本周期已接受的天气调整，恢复原计划；
// 延后的天数保留，待处理的建议一并忽略
func (s *ReminderService) ClearWeatherAdjustment(ctx context.Context, id string) (*models.Reminder, error) {
	var reminder *models.Reminder
	var cleared int
	err := database.WithTransaction(ctx, s.DB, func(tx *gorm.DB) error {
		var err error
		reminder, err = s.loadReminder(tx, id)
		if err != nil {
			return err
		}
		cleared = reminder.ClearWeather()
		if err := tx.Model(&models.Reminder{}).Where("id = ?", id).Updates(map[string]interface{}{
			"cycle_offset_days":   reminder.CycleOffsetDays,
			"weather_offset_days": 0,
			"next_due_at":         reminder.NextDueAt,
		}).Error; err != nil {
			return err
		}
		return s.dismissPending(tx, id)
	})
	if err != nil {
		return nil, err
	}
	logger.Info("撤销天气调整: id=%s, days=%d, next_due=%s", id, -cleared, reminder.NextDueAt.Format(time.RFC3339))
	return reminder, nil
}

// 11 DueReminders 今天到期或已过期的启用提醒
func (s *ReminderService) DueReminders(ctx context.Context, userID string) ([]models.Reminder, error) {
	var reminders []models.Reminder
	err := s.userReminders(s.DB.WithContext(ctx), userID).
		Where("reminders.active = ? AND reminders.next_due_at < ?", true, s.startOfTomorrow()).
		Preload("Plant").
		Order("reminders.next_due_at").
		Find(&reminders).Error
	if err != nil {
		return nil, fmt.Errorf("查询到期提醒失败: %w", err)
	}
	return reminders, nil
}

// 12 UpcomingReminders 未来 days 天内（不含今天）到期的启用提醒
func (s *ReminderService) UpcomingReminders(ctx context.Context, userID string, days int) ([]models.Reminder, error) {
	if days < 1 || days > maxUpcomingDays {
		return nil, apperror.NewValidation("days", fmt.Sprintf("days must be between 1 and %d", maxUpcomingDays))
	}
	from := s.startOfTomorrow()
	var reminders []models.Reminder
	err := s.userReminders(s.DB.WithContext(ctx), userID).
		Where("reminders.active = ? AND reminders.next_due_at >= ? AND reminders.next_due_at < ?", true, from, from.AddDate(0, 0, days)).
		Preload("Plant").
		Order("reminders.next_due_at").
		Find(&reminders).Error
	if err != nil {
		return nil, fmt.Errorf("查询即将到期提醒失败: %w", err)
	}
	return reminders, nil
}

// 13 ReminderStats 用户提醒统计
func (s *ReminderService) ReminderStats(ctx context.Context, userID string) (ReminderStats, error) {
	db := s.DB.WithContext(ctx)
	tomorrow := s.startOfTomorrow()
	var stats ReminderStats

	counts := []struct {
		dst   *int64
		where string
		args  []interface{}
	}{
		{&stats.Total, "1 = 1", nil},
		{&stats.Active, "reminders.active = ?", []interface{}{true}},
		{&stats.DueToday, "reminders.active = ? AND reminders.next_due_at < ?", []interface{}{true, tomorrow}},
		{&stats.Upcoming7Days, "reminders.active = ? AND reminders.next_due_at >= ? AND reminders.next_due_at < ?", []interface{}{true, tomorrow, tomorrow.AddDate(0, 0, 7)}},
		{&stats.WeatherAdjusted, "reminders.weather_offset_days <> 0", nil},
	}
	for _, c := range counts {
		if err := s.userReminders(db, userID).Where(c.where, c.args...).Count(c.dst).Error; err != nil {
			return ReminderStats{}, fmt.Errorf("统计提醒失败: %w", err)
		}
	}

	if err := db.Model(&models.Adjustment{}).
		Joins("JOIN reminders ON reminders.id = adjustments.reminder_id").
		Joins("JOIN plants ON plants.id = reminders.plant_id").
		Where("plants.user_id = ? AND adjustments.status = ?", userID, models.AdjustmentPending).
		Count(&stats.PendingAdjustments).Error; err != nil {
		return ReminderStats{}, fmt.Errorf("统计调整建议失败: %w", err)
	}
	return stats, nil
}

func (s *ReminderService) userReminders(db *gorm.DB, userID string) *gorm.DB {
	return db.Model(&models.Reminder{}).
		Joins("JOIN plants ON plants.id = reminders.plant_id").
		Where("plants.user_id = ?", userID)
}

// 明天零点（按当前时间所在时区）
func (s *ReminderService) startOfTomorrow() time.Time {
	now := s.now()
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}

// 忽略提醒当前的待处理建议
func (s *ReminderService) dismissPending(tx *gorm.DB, reminderID string) error {
	return tx.Model(&models.Adjustment{}).
		Where("pending_key = ? AND status = ?", reminderID, models.AdjustmentPending).
		Updates(map[string]interface{}{
			"status":      models.AdjustmentDismissed,
			"pending_key": nil,
			"resolved_at": s.now(),
		}).Error
}

// 条件更新 pending -> status，非待处理时返回 InvariantViolation
func (s *ReminderService) resolve(tx *gorm.DB, adjustmentID string, status models.AdjustmentStatus) error {
	res := tx.Model(&models.Adjustment{}).
		Where("id = ? AND status = ?", adjustmentID, models.AdjustmentPending).
		Updates(map[string]interface{}{
			"status":      status,
			"pending_key": nil,
			"resolved_at": s.now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var current models.Adjustment
	if err := tx.Select("id", "status").First(&current, "id = ?", adjustmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.ErrNotFound
		}
		return err
	}
	return apperror.NewInvariant("adjustment %s is already %s", adjustmentID, current.Status)
}

func (s *ReminderService) loadReminder(db *gorm.DB, id string) (*models.Reminder, error) {
	var reminder models.Reminder
	if err := db.Preload("Plant").First(&reminder, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	return &reminder, nil
}

func (s *ReminderService) findPending(db *gorm.DB, reminderID string) (*models.Adjustment, error) {
	var adj models.Adjustment
	err := db.Where("pending_key = ?", reminderID).Limit(1).Find(&adj).Error
	if err != nil {
		return nil, err
	}
	if adj.ID == "" {
		return nil, nil
	}
	return &adj, nil
}

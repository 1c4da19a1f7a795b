package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"plantcare-http-service/internal/domain/models"
	"plantcare-http-service/internal/error/apperror"
	"plantcare-http-service/internal/infrastructure/config"
	"plantcare-http-service/internal/infrastructure/logger"
)

const maxPlantNameLen = 80

// InterfacePlantService 植物服务接口
type InterfacePlantService interface {
	CreatePlant(ctx context.Context, input CreatePlantInput) (*models.Plant, error)
	GetPlant(ctx context.Context, id string) (*models.Plant, error)
	ListUserPlants(ctx context.Context, userID string) ([]models.Plant, error)
	ListPlantReminders(ctx context.Context, plantID string, query models.PaginationQuery) ([]models.Reminder, models.PaginationResult, error)
}

// CreatePlantInput 创建植物的参数
type CreatePlantInput struct {
	UserID      string   `json:"user_id"`
	Name        string   `json:"name" binding:"required"`
	Species     string   `json:"species"`
	CareContext string   `json:"care_context"`
	City        string   `json:"city"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

// PlantService 提供植物相关的服务
type PlantService struct {
	DB     *gorm.DB
	Config *config.Config
}

// NewPlantService 创建一个新的植物服务
func NewPlantService(db *gorm.DB, cfg *config.Config) InterfacePlantService {
	return &PlantService{
		DB:     db,
		Config: cfg,
	}
}

// 1 CreatePlant 创建植物
func (s *PlantService) CreatePlant(ctx context.Context, input CreatePlantInput) (*models.Plant, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || len(name) > maxPlantNameLen {
		return nil, apperror.NewValidation("name", fmt.Sprintf("name is required and must be at most %d characters", maxPlantNameLen))
	}
	if strings.TrimSpace(input.UserID) == "" {
		return nil, apperror.NewValidation("user_id", "user_id is required")
	}

	careContext := models.CareIndoorPotted
	if strings.TrimSpace(input.CareContext) != "" {
		cc, ok := models.ParseCareContext(input.CareContext)
		if !ok {
			return nil, apperror.NewValidation("care_context", fmt.Sprintf("unknown care context %q", input.CareContext))
		}
		careContext = cc
	}

	if (input.Latitude == nil) != (input.Longitude == nil) {
		return nil, apperror.NewValidation("latitude", "latitude and longitude must be provided together")
	}
	if input.Latitude != nil && (*input.Latitude < -90 || *input.Latitude > 90 || *input.Longitude < -180 || *input.Longitude > 180) {
		return nil, apperror.NewValidation("latitude", "coordinates out of range")
	}

	plant := &models.Plant{
		UserID:      strings.TrimSpace(input.UserID),
		Name:        name,
		Species:     strings.TrimSpace(input.Species),
		CareContext: careContext,
		City:        strings.TrimSpace(input.City),
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
	}
	if err := s.DB.WithContext(ctx).Create(plant).Error; err != nil {
		return nil, fmt.Errorf("创建植物失败: %w", err)
	}

	logger.Info("创建植物: id=%s, user=%s, context=%s", plant.ID, plant.UserID, plant.CareContext)
	return plant, nil
}

// 2 GetPlant 根据ID获取植物
func (s *PlantService) GetPlant(ctx context.Context, id string) (*models.Plant, error) {
	var plant models.Plant
	if err := s.DB.WithContext(ctx).First(&plant, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	return &plant, nil
}

// 3 ListUserPlants 获取用户的所有植物
func (s *PlantService) ListUserPlants(ctx context.Context, userID string) ([]models.Plant, error) {
	var plants []models.Plant
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Order("created_at").Find(&plants).Error; err != nil {
		return nil, err
	}
	return plants, nil
}

// 4 ListPlantReminders 分页获取植物的提醒，按到期时间排序
func (s *PlantService) ListPlantReminders(ctx context.Context, plantID string, query models.PaginationQuery) ([]models.Reminder, models.PaginationResult, error) {
	if _, err := s.GetPlant(ctx, plantID); err != nil {
		return nil, models.PaginationResult{}, err
	}

	query = query.Normalize()
	var reminders []models.Reminder
	var total int64

	db := s.DB.WithContext(ctx).Model(&models.Reminder{}).Where("plant_id = ?", plantID)

	// 获取总数
	if err := db.Count(&total).Error; err != nil {
		return nil, models.PaginationResult{}, err
	}

	order := "next_due_at"
	if query.Desc {
		order += " DESC"
	}

	// 分页查询
	offset := (query.PageNum - 1) * query.PageSize
	if err := db.Order(order).Offset(offset).Limit(query.PageSize).Find(&reminders).Error; err != nil {
		return nil, models.PaginationResult{}, err
	}

	return reminders, models.NewPaginationResult(int(total), query.PageNum, query.PageSize), nil
}

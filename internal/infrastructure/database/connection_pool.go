package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"plantcare-http-service/internal/domain/models"
	"plantcare-http-service/internal/error/apperror"
	"plantcare-http-service/internal/infrastructure/config"
	"plantcare-http-service/internal/infrastructure/logger"
)

// ConnectionPool 数据库连接池管理
type ConnectionPool struct {
	DB              *gorm.DB
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// NewConnectionPool 创建新的数据库连接池
func NewConnectionPool(cfg *config.Config) (*ConnectionPool, error) {
	dialector, err := openDialector(cfg.DBDriver, cfg.GetDSN())
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	pool := &ConnectionPool{
		DB:              db,
		MaxIdleConns:    10,               // 默认空闲连接数
		MaxOpenConns:    100,              // 默认最大连接数
		ConnMaxLifetime: 1 * time.Hour,    // 连接最大生命周期
		ConnMaxIdleTime: 30 * time.Minute, // 空闲连接最大生命周期
	}

	// SQLite 只允许单个写连接
	if cfg.DBDriver == "sqlite" {
		pool.MaxIdleConns = 1
		pool.MaxOpenConns = 1
	}

	if err := pool.ConfigurePool(); err != nil {
		return nil, err
	}

	return pool, nil
}

func openDialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "mysql":
		return mysql.Open(dsn), nil
	case "sqlite", "":
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("不支持的数据库驱动: %s", driver)
	}
}

// ConfigurePool 配置连接池参数
func (p *ConnectionPool) ConfigurePool() error {
	sqlDB, err := p.DB.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxIdleConns(p.MaxIdleConns)
	sqlDB.SetMaxOpenConns(p.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(p.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(p.ConnMaxIdleTime)

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return err
	}

	logger.Info("数据库连接池已配置: 最大空闲连接数=%d, 最大连接数=%d", p.MaxIdleConns, p.MaxOpenConns)
	return nil
}

// Migrate 根据迁移模式同步表结构，"drop" 模式会先删除所有表
func (p *ConnectionPool) Migrate(mode string) error {
	tables := []interface{}{
		&models.Plant{},
		&models.Reminder{},
		&models.Adjustment{},
	}

	if mode == "drop" {
		logger.Warning("迁移模式为drop，删除所有表后重建")
		if err := p.DB.Migrator().DropTable(tables...); err != nil {
			return fmt.Errorf("删除表失败: %w", err)
		}
	}

	if err := p.DB.AutoMigrate(tables...); err != nil {
		return fmt.Errorf("自动迁移失败: %w", err)
	}
	logger.Info("数据库迁移完成: mode=%s", mode)
	return nil
}

// Stats 获取连接池统计信息
func (p *ConnectionPool) Stats() (map[string]interface{}, error) {
	sqlDB, err := p.DB.DB()
	if err != nil {
		return nil, err
	}

	stats := sqlDB.Stats()
	return map[string]interface{}{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration":        stats.WaitDuration.String(),
	}, nil
}

// Close 关闭连接池
func (p *ConnectionPool) Close() error {
	sqlDB, err := p.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTransaction 在事务中执行函数，fn 返回错误时回滚。
// 业务错误（参数、不变量、记录不存在）原样返回，其他错误记录日志
func WithTransaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	err := db.WithContext(ctx).Transaction(fn)
	if err != nil && !isBusinessError(err) {
		logger.Warning("事务回滚: %v", err)
	}
	return err
}

func isBusinessError(err error) bool {
	return errors.Is(err, apperror.ErrNotFound) || apperror.IsInvariant(err) || apperror.IsValidation(err) ||
		errors.Is(err, context.Canceled)
}

// HealthCheck 健康检查，最多等待2秒
func HealthCheck(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// GetDB 获取GORM数据库实例
func (p *ConnectionPool) GetDB() *gorm.DB {
	return p.DB
}

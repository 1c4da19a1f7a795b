package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"plantcare-http-service/internal/app/routes"
	"plantcare-http-service/internal/domain/services/container"
	"plantcare-http-service/internal/infrastructure/config"
	"plantcare-http-service/internal/infrastructure/database"
	"plantcare-http-service/internal/infrastructure/logger"
)

var (
	envFile       string
	migrationMode string
)

var rootCmd = &cobra.Command{
	Use:   "plantcare",
	Short: "植物养护建议与提醒调整服务",
	Long: `plantcare 根据植物名称、养护环境和当地天气给出养护建议，
并根据天气预报为户外植物的浇水提醒提出到期时间调整。`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 加载环境变量
		if err := godotenv.Load(envFile); err != nil {
			fmt.Printf("Warning: 未找到 %s 文件，使用系统环境变量\n", envFile)
		}
		if err := logger.SetupLogger(); err != nil {
			return fmt.Errorf("初始化日志失败: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动HTTP服务",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "环境变量文件路径")
	rootCmd.PersistentFlags().StringVar(&migrationMode, "migrate", "", "数据库迁移模式: auto 或 drop (默认读取 DB_MIGRATION_MODE)")

	rootCmd.AddCommand(serveCmd, adjustCmd, askCmd, dueCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runtimeDeps 命令共享的运行时依赖
type runtimeDeps struct {
	cfg       *config.Config
	pool      *database.ConnectionPool
	redis     *redis.Client
	container *container.ServiceContainer
}

func (d *runtimeDeps) Close() {
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.pool != nil {
		if err := d.pool.Close(); err != nil {
			logger.Warning("关闭数据库连接失败: %v", err)
		}
	}
}

// bootstrap 初始化数据库、Redis和服务容器
func bootstrap() (*runtimeDeps, error) {
	cfg := config.GetConfig()
	logger.Info("数据库配置: 驱动=%s, 地址=%s:%s, 数据库=%s", cfg.DBDriver, cfg.DBHost, cfg.DBPort, cfg.DBName)

	pool, err := database.NewConnectionPool(cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化数据库连接池失败: %w", err)
	}

	mode := migrationMode
	if mode == "" {
		mode = cfg.DBMigrationMode
	}
	if err := pool.Migrate(mode); err != nil {
		_ = pool.Close()
		return nil, err
	}

	deps := &runtimeDeps{cfg: cfg, pool: pool}

	if cfg.RedisEnabled {
		deps.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.GetRedisAddr(),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	} else {
		logger.Info("Redis未启用，使用进程内限流与缓存")
	}

	c, err := container.NewServiceContainer(pool.GetDB(), cfg, deps.redis)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("初始化服务容器失败: %w", err)
	}
	deps.container = c
	return deps, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	deps, err := bootstrap()
	if err != nil {
		return err
	}
	defer deps.Close()

	printSystemInfo(deps.pool)

	router := routes.SetupRouter(deps.container)
	srv := &http.Server{
		Addr:              "0.0.0.0:" + deps.cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("服务器启动在 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("服务器启动失败: %w", err)
		}
		return nil
	case sig := <-quit:
		logger.Info("收到信号 %s，正在关闭服务器", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("服务器关闭失败: %w", err)
	}
	logger.Info("服务器已关闭")
	return nil
}

func printSystemInfo(pool *database.ConnectionPool) {
	// 打印数据库连接池信息
	stats, err := pool.Stats()
	if err == nil {
		logger.Info("数据库连接池状态: %+v", stats)
	}

	logger.Info("系统CPU核心数: %d, 当前Go协程数: %d", runtime.NumCPU(), runtime.NumGoroutine())

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	logger.Info("系统内存使用: Alloc=%v MiB, Sys=%v MiB", m.Alloc/1024/1024, m.Sys/1024/1024)
}

package benchmark

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantcare-http-service/internal/app/routes"
	"plantcare-http-service/internal/domain/services"
	"plantcare-http-service/internal/domain/services/container"
	"plantcare-http-service/internal/error/code"
	"plantcare-http-service/internal/infrastructure/config"
	"plantcare-http-service/internal/infrastructure/database"
)

// 测试配置
type TestConfig struct {
	BaseURL     string `json:"base_url"`
	UserID      string `json:"user_id"`
	Concurrency int    `json:"concurrency"`
	Requests    int    `json:"requests"`
}

var (
	testConfig TestConfig
	authToken  string
)

// TestMain 默认在进程内启动服务；设置 BENCH_BASE_URL 时压测已部署的服务
func TestMain(m *testing.M) {
	if err := loadConfig(); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	var shutdown func()
	if testConfig.BaseURL == "" {
		var err error
		shutdown, err = startLocalServer()
		if err != nil {
			fmt.Printf("启动本地服务失败: %v\n", err)
			os.Exit(1)
		}
	}

	code := m.Run()
	if shutdown != nil {
		shutdown()
	}
	os.Exit(code)
}

// loadConfig 加载测试配置
func loadConfig() error {
	// 默认配置
	testConfig = TestConfig{
		BaseURL:     os.Getenv("BENCH_BASE_URL"),
		UserID:      "bench-user",
		Concurrency: 8,
		Requests:    64,
	}

	// 尝试从文件加载配置
	data, err := os.ReadFile("test_config.json")
	if err == nil {
		if err := json.Unmarshal(data, &testConfig); err != nil {
			return fmt.Errorf("解析配置文件失败: %v", err)
		}
	}
	if n, err := strconv.Atoi(os.Getenv("BENCH_REQUESTS")); err == nil && n > 0 {
		testConfig.Requests = n
	}
	return nil
}

func startLocalServer() (func(), error) {
	gin.SetMode(gin.ReleaseMode)

	cfg := &config.Config{
		DBDriver:          "sqlite",
		SQLitePath:        "file:benchmark?mode=memory&cache=shared",
		WeatherTimeout:    200 * time.Millisecond,
		CompletionTimeout: time.Second,
		ModerationTimeout: time.Second,
		AskRateLimit:      5,
		AskRateWindow:     time.Minute,
		JWTSecretKey:      "bench-secret",
		BatchConcurrency:  2,
	}
	pool, err := database.NewConnectionPool(cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Migrate("drop"); err != nil {
		_ = pool.Close()
		return nil, err
	}

	c, err := container.NewServiceContainer(pool.GetDB(), cfg, nil)
	if err != nil {
		_ = pool.Close()
		return nil, err
	}

	token, err := services.NewJWTService(cfg).GenerateToken(testConfig.UserID, time.Hour)
	if err != nil {
		_ = pool.Close()
		return nil, err
	}
	authToken = token

	srv := httptest.NewServer(routes.SetupRouter(c))
	testConfig.BaseURL = srv.URL + "/api"
	return func() {
		srv.Close()
		_ = pool.Close()
	}, nil
}

// TestPing 测试健康检查接口
func TestPing(t *testing.T) {
	result := NewRunner(testConfig.BaseURL, testConfig.Concurrency, testConfig.Requests, "").Get("/ping")
	t.Log(result)

	assert.Zero(t, result.Failures(), "健康检查接口存在失败请求")
}

// TestTips 养护建议接口受IP限流保护，只要求没有服务端错误
func TestTips(t *testing.T) {
	result := NewRunner(testConfig.BaseURL, testConfig.Concurrency, testConfig.Requests, "").
		Get("/tips?plant=Monstera&context=indoor_potted&topic=watering")
	t.Log(result)

	assert.Zero(t, result.ServerErrors())
	assert.Greater(t, result.Rate(http.StatusOK), 0.0)
	assert.InDelta(t, 1.0, result.Rate(http.StatusOK, http.StatusTooManyRequests), 1e-9)
}

// TestAskQuestion 提问接口超出配额后返回429
func TestAskQuestion(t *testing.T) {
	result := NewRunner(testConfig.BaseURL, testConfig.Concurrency, testConfig.Requests, authToken).
		Post("/answers", map[string]interface{}{
			"plant":    "Snake Plant",
			"question": "How often should I water it?",
		})
	t.Log(result)

	require.Empty(t, result.Errors)
	assert.Zero(t, result.ServerErrors())
	assert.Greater(t, result.BizCodes[code.ErrSuccess], 0)
	if testConfig.Requests > 10 {
		assert.Greater(t, result.StatusCodes[http.StatusTooManyRequests], 0)
	}
}

// TestCreatePlant 并发创建植物后汇总视图可用
func TestCreatePlant(t *testing.T) {
	runner := NewRunner(testConfig.BaseURL, testConfig.Concurrency, testConfig.Requests, authToken)
	result := runner.Post("/plants", map[string]interface{}{
		"name":         "Basil",
		"care_context": "outdoor_potted",
		"city":         "Austin, TX",
	})
	t.Log(result)

	require.Empty(t, result.Errors)
	assert.Zero(t, result.ServerErrors())

	stats := runner.Get("/reminders/stats")
	t.Log(stats)
	assert.Zero(t, stats.ServerErrors())
}

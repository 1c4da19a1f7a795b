package services

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"plantcare-http-service/internal/domain/weather"
	"plantcare-http-service/internal/infrastructure/config"
	"plantcare-http-service/internal/infrastructure/database"
	"plantcare-http-service/internal/infrastructure/resilience"
)

// newTestDB 每个测试使用独立的内存数据库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	cfg := &config.Config{DBDriver: "sqlite", SQLitePath: fmt.Sprintf("file:%s?mode=memory&cache=shared", name)}
	pool, err := database.NewConnectionPool(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	require.NoError(t, pool.Migrate("drop"))
	return pool.GetDB()
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, InterfaceRedisService) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisServiceWithClient(client)
}

func testConfig() *config.Config {
	return &config.Config{
		WeatherTimeout:   time.Second,
		WeatherCacheTTL:  time.Hour,
		AskRateLimit:     3,
		AskRateWindow:    time.Minute,
		JWTSecretKey:     "test-secret",
		BatchConcurrency: 2,
		Adjust: config.AdjustPolicyConfig{
			HeavyRainInches:    0.5,
			LightRainInches:    0.25,
			DryInches:          0.05,
			HotTempF:           90,
			MaxShiftRatio:      0.5,
			LightFactorWeight:  0.5,
			FreezeDelayDays:    2,
			HeavyRainDelayDays: 2,
		},
	}
}

// fakeProvider 返回固定观测值并记录调用次数
type fakeProvider struct {
	obs   weather.Observation
	err   error
	calls int32
}

func (f *fakeProvider) Forecast(_ context.Context, loc weather.Location) (weather.Observation, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return weather.Observation{}, f.err
	}
	obs := f.obs
	obs.Location = loc.String()
	return obs, nil
}

func fakeWeather(p weather.Provider) *weather.Context {
	return weather.NewContext(p, time.Second).WithPolicy(resilience.Policy{Timeout: time.Second, Attempts: 1})
}

func heavyRain() weather.Observation {
	return weather.Observation{Category: "Rain", PrecipitationInches: 1.0, TempMinF: 55, TempMaxF: 70, Humidity: 90, CloudCover: 100}
}

func hotAndDry() weather.Observation {
	return weather.Observation{Category: "Clear", PrecipitationInches: 0, TempMinF: 75, TempMaxF: 92, Humidity: 20, CloudCover: 0}
}

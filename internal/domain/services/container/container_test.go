package container

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantcare-http-service/internal/domain/advisor"
	"plantcare-http-service/internal/domain/knowledge"
	"plantcare-http-service/internal/domain/services"
	"plantcare-http-service/internal/infrastructure/config"
	"plantcare-http-service/internal/infrastructure/database"
)

func newContainer(t *testing.T, client *redis.Client) *ServiceContainer {
	t.Helper()
	cfg := &config.Config{
		DBDriver:          "sqlite",
		SQLitePath:        "file:container_" + t.Name() + "?mode=memory&cache=shared",
		WeatherTimeout:    time.Second,
		CompletionTimeout: time.Second,
		ModerationTimeout: time.Second,
		AskRateLimit:      5,
		AskRateWindow:     time.Minute,
		JWTSecretKey:      "k",
		BatchConcurrency:  2,
	}
	pool, err := database.NewConnectionPool(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	c, err := NewServiceContainer(pool.GetDB(), cfg, client)
	require.NoError(t, err)
	return c
}

func TestContainerWiresServices(t *testing.T) {
	c := newContainer(t, nil)

	assert.False(t, c.HasRedis())
	assert.Nil(t, c.GetService("redis"))
	assert.IsType(t, &knowledge.KnowledgeBase{}, c.GetService("knowledge"))
	assert.IsType(t, &advisor.Orchestrator{}, c.GetService("advisor"))
	_, ok := c.GetService("reminder").(services.InterfaceReminderService)
	assert.True(t, ok)
	_, ok = c.GetService("plant").(services.InterfacePlantService)
	assert.True(t, ok)
	assert.NotNil(t, c.GetDB())
	assert.Nil(t, c.GetService("unknown"))
}

func TestContainerUsesReachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := newContainer(t, client)
	assert.True(t, c.HasRedis())
}

func TestContainerIgnoresUnreachableRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	c := newContainer(t, client)
	assert.False(t, c.HasRedis())
}

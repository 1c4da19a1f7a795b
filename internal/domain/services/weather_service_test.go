package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantcare-http-service/internal/domain/weather"
	"plantcare-http-service/internal/error/apperror"
	"plantcare-http-service/internal/infrastructure/config"
)

const forecastJSON = `{
  "cod": "200",
  "list": [
    {"dt": 1767261600, "main": {"temp_min": 58, "temp_max": 66, "humidity": 80}, "weather": [{"main": "Rain"}], "clouds": {"all": 90}, "rain": {"3h": 10.0}},
    {"dt": 1767272400, "main": {"temp_min": 55, "temp_max": 62, "humidity": 90}, "weather": [{"main": "Rain"}], "clouds": {"all": 100}, "rain": {"3h": 5.4}},
    {"dt": 1767283200, "main": {"temp_min": 57, "temp_max": 71, "humidity": 70}, "weather": [{"main": "Clouds"}], "clouds": {"all": 50}}
  ],
  "city": {"name": "Austin", "country": "US"}
}`

func newForecastServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/forecast", r.URL.Path)
		assert.Equal(t, "imperial", r.URL.Query().Get("units"))
		assert.Equal(t, "test-key", r.URL.Query().Get("appid"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func weatherConfig(url string) *config.Config {
	cfg := testConfig()
	cfg.WeatherAPIURL = url
	cfg.WeatherAPIKey = "test-key"
	return cfg
}

func TestForecastAggregatesNext24Hours(t *testing.T) {
	srv, _ := newForecastServer(t, http.StatusOK, forecastJSON)
	svc := NewWeatherService(weatherConfig(srv.URL), nil)

	loc, ok := weather.ParseLocation("Austin, TX", nil, nil)
	require.True(t, ok)
	obs, err := svc.Forecast(context.Background(), loc)
	require.NoError(t, err)

	assert.Equal(t, "Rain", obs.Category)
	assert.InDelta(t, 15.4/25.4, obs.PrecipitationInches, 1e-9)
	assert.Equal(t, 55.0, obs.TempMinF)
	assert.Equal(t, 71.0, obs.TempMaxF)
	assert.Equal(t, 80, obs.Humidity)
	assert.Equal(t, 80, obs.CloudCover)
	assert.Equal(t, loc.String(), obs.Location)

	snapshot := weather.Normalize(obs)
	assert.Equal(t, 0.61, snapshot.PrecipitationInches)
}

func TestForecastUsesRedisCache(t *testing.T) {
	srv, hits := newForecastServer(t, http.StatusOK, forecastJSON)
	_, rs := newTestRedis(t)
	svc := NewWeatherService(weatherConfig(srv.URL), rs)

	loc, _ := weather.ParseLocation("Austin", nil, nil)
	first, err := svc.Forecast(context.Background(), loc)
	require.NoError(t, err)
	second, err := svc.Forecast(context.Background(), loc)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
	assert.Equal(t, first.Category, second.Category)
	assert.InDelta(t, first.PrecipitationInches, second.PrecipitationInches, 1e-9)
}

func TestForecastErrorClassification(t *testing.T) {
	loc, _ := weather.ParseLocation("Austin", nil, nil)

	srv, _ := newForecastServer(t, http.StatusServiceUnavailable, `{}`)
	_, err := NewWeatherService(weatherConfig(srv.URL), nil).Forecast(context.Background(), loc)
	assert.True(t, apperror.IsTransient(err))

	srv, _ = newForecastServer(t, http.StatusNotFound, `{"cod":"404","message":"city not found"}`)
	_, err = NewWeatherService(weatherConfig(srv.URL), nil).Forecast(context.Background(), loc)
	require.Error(t, err)
	assert.False(t, apperror.IsTransient(err))

	srv, _ = newForecastServer(t, http.StatusOK, `{"cod":"200","list":[]}`)
	_, err = NewWeatherService(weatherConfig(srv.URL), nil).Forecast(context.Background(), loc)
	assert.Error(t, err)

	cfg := testConfig()
	_, err = NewWeatherService(cfg, nil).Forecast(context.Background(), loc)
	assert.Error(t, err, "missing api key")
}

func TestForecastSharedFetchSurvivesFirstCallerCancel(t *testing.T) {
	started := make(chan struct{}, 2)
	release := make(chan struct{})
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		started <- struct{}{}
		<-release
		_, _ = w.Write([]byte(forecastJSON))
	}))
	t.Cleanup(srv.Close)

	svc := NewWeatherService(weatherConfig(srv.URL), nil)
	loc, _ := weather.ParseLocation("Austin, TX", nil, nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Forecast(firstCtx, loc)
		firstErr <- err
	}()
	<-started

	second := make(chan error, 1)
	go func() {
		obs, err := svc.Forecast(context.Background(), loc)
		if err == nil {
			assert.Equal(t, "Rain", obs.Category)
		}
		second <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	require.NoError(t, <-second)
	assert.LessOrEqual(t, atomic.LoadInt32(&hits), int32(2))
}

func TestDominantCategoryPrefersSeverityOnTie(t *testing.T) {
	assert.Equal(t, "Snow", dominantCategory(map[string]int{"Clouds": 2, "Snow": 2}))
	assert.Equal(t, "Clouds", dominantCategory(map[string]int{"Clouds": 3, "Rain": 1}))
	assert.Equal(t, "", dominantCategory(nil))
}

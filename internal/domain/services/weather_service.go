package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"plantcare-http-service/internal/domain/weather"
	"plantcare-http-service/internal/error/apperror"
	"plantcare-http-service/internal/infrastructure/config"
	"plantcare-http-service/internal/infrastructure/logger"
)

const (
	forecastSlots  = 8 // 3小时一个时段，共24小时
	mmPerInch      = 25.4
	weatherKeyBase = "weather:forecast:"
)

// InterfaceWeatherService 天气服务接口，实现 weather.Provider
type InterfaceWeatherService interface {
	Forecast(ctx context.Context, loc weather.Location) (weather.Observation, error)
}

// WeatherService 通过 OpenWeather 5天/3小时预报接口获取未来24小时天气
type WeatherService struct {
	Config *config.Config
	Redis  InterfaceRedisService
	Client *http.Client
	group  singleflight.Group
}

// owForecastResponse OpenWeather 预报响应
type owForecastResponse struct {
	Cod     string `json:"cod"`
	Message string `json:"message"`
	List    []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			TempMin  float64 `json:"temp_min"`
			TempMax  float64 `json:"temp_max"`
			Humidity int     `json:"humidity"`
		} `json:"main"`
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
		Clouds struct {
			All int `json:"all"`
		} `json:"clouds"`
		Rain struct {
			ThreeHour float64 `json:"3h"`
		} `json:"rain"`
		Snow struct {
			ThreeHour float64 `json:"3h"`
		} `json:"snow"`
	} `json:"list"`
	City struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"city"`
}

// NewWeatherService 创建天气服务，redis 为 nil 时不缓存
func NewWeatherService(cfg *config.Config, redis InterfaceRedisService) InterfaceWeatherService {
	return &WeatherService{
		Config: cfg,
		Redis:  redis,
		Client: &http.Client{},
	}
}

// Forecast 获取位置未来24小时预报，相同位置的并发请求合并为一次
func (s *WeatherService) Forecast(ctx context.Context, loc weather.Location) (weather.Observation, error) {
	key := weatherKeyBase + loc.Key()

	if s.Redis != nil {
		var cached weather.Observation
		if err := s.Redis.Get(ctx, key, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, ErrCacheMiss) {
			logger.Warning("读取天气缓存失败: %v", err)
		}
	}

	// 共享请求不随首个调用方取消，只受天气超时约束
	ch := s.group.DoChan(key, func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout())
		defer cancel()

		obs, err := s.fetch(shared, loc)
		if err != nil {
			return weather.Observation{}, err
		}
		if s.Redis != nil {
			if err := s.Redis.Set(shared, key, obs, s.Config.WeatherCacheTTL); err != nil {
				logger.Warning("写入天气缓存失败: %v", err)
			}
		}
		return obs, nil
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return weather.Observation{}, r.Err
		}
		return r.Val.(weather.Observation), nil
	case <-ctx.Done():
		return weather.Observation{}, ctx.Err()
	}
}

func (s *WeatherService) timeout() time.Duration {
	if s.Config.WeatherTimeout > 0 {
		return s.Config.WeatherTimeout
	}
	return 6 * time.Second
}

func (s *WeatherService) fetch(ctx context.Context, loc weather.Location) (weather.Observation, error) {
	if s.Config.WeatherAPIKey == "" {
		return weather.Observation{}, errors.New("OPENWEATHER_API_KEY 未配置")
	}

	params := url.Values{}
	params.Set("appid", s.Config.WeatherAPIKey)
	params.Set("units", "imperial")
	params.Set("cnt", strconv.Itoa(forecastSlots))
	if loc.HasCoordinates() {
		params.Set("lat", strconv.FormatFloat(*loc.Lat, 'f', 4, 64))
		params.Set("lon", strconv.FormatFloat(*loc.Lon, 'f', 4, 64))
	} else {
		params.Set("q", loc.Query)
	}
	endpoint := strings.TrimRight(s.Config.WeatherAPIURL, "/") + "/forecast?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return weather.Observation{}, fmt.Errorf("创建天气请求失败: %w", err)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return weather.Observation{}, apperror.Transient(fmt.Errorf("error fetching weather data: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return weather.Observation{}, apperror.Transient(fmt.Errorf("weather API returned status code %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return weather.Observation{}, fmt.Errorf("weather API returned status code %d", resp.StatusCode)
	}

	var apiResp owForecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return weather.Observation{}, fmt.Errorf("error decoding weather response: %w", err)
	}
	if len(apiResp.List) == 0 {
		return weather.Observation{}, errors.New("weather API returned an empty forecast")
	}

	obs := aggregateForecast(apiResp)
	obs.Location = loc.String()
	logger.Info("天气获取成功: location=%s, condition=%s, precip=%.2fin", obs.Location, obs.Category, obs.PrecipitationInches)
	return obs, nil
}

// 天气类别的严重程度，出现次数相同时取更严重的
var categorySeverity = map[string]int{
	"Thunderstorm": 6,
	"Snow":         5,
	"Rain":         4,
	"Drizzle":      3,
	"Clouds":       2,
	"Clear":        1,
}

func aggregateForecast(r owForecastResponse) weather.Observation {
	slots := r.List
	if len(slots) > forecastSlots {
		slots = slots[:forecastSlots]
	}

	obs := weather.Observation{
		Date:     time.Unix(slots[0].Dt, 0).UTC(),
		TempMinF: slots[0].Main.TempMin,
		TempMaxF: slots[0].Main.TempMax,
	}

	counts := make(map[string]int)
	var precipMM float64
	var humidity, clouds int
	for _, slot := range slots {
		precipMM += slot.Rain.ThreeHour + slot.Snow.ThreeHour
		if slot.Main.TempMin < obs.TempMinF {
			obs.TempMinF = slot.Main.TempMin
		}
		if slot.Main.TempMax > obs.TempMaxF {
			obs.TempMaxF = slot.Main.TempMax
		}
		humidity += slot.Main.Humidity
		clouds += slot.Clouds.All
		if len(slot.Weather) > 0 {
			counts[slot.Weather[0].Main]++
		}
	}

	obs.PrecipitationInches = precipMM / mmPerInch
	obs.Humidity = humidity / len(slots)
	obs.CloudCover = clouds / len(slots)
	obs.Category = dominantCategory(counts)
	return obs
}

func dominantCategory(counts map[string]int) string {
	categories := make([]string, 0, len(counts))
	for c := range counts {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool {
		a, b := categories[i], categories[j]
		if counts[a] != counts[b] {
			return counts[a] > counts[b]
		}
		if categorySeverity[a] != categorySeverity[b] {
			return categorySeverity[a] > categorySeverity[b]
		}
		return a < b
	})
	if len(categories) == 0 {
		return ""
	}
	return categories[0]
}

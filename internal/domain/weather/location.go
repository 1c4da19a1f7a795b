package weather

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Location 天气查询位置：城市查询串或经纬度，二者取其一
type Location struct {
	Query string   `json:"query,omitempty"` // OpenWeather 格式，如 "Austin,TX,US"
	Lat   *float64 `json:"lat,omitempty"`
	Lon   *float64 `json:"lon,omitempty"`
}

// HasCoordinates 是否为经纬度位置
func (l Location) HasCoordinates() bool {
	return l.Lat != nil && l.Lon != nil
}

// Key 缓存键，同一位置总是得到相同的键
func (l Location) Key() string {
	if l.HasCoordinates() {
		return fmt.Sprintf("ll:%.2f,%.2f", *l.Lat, *l.Lon)
	}
	return "q:" + strings.ToLower(l.Query)
}

func (l Location) String() string {
	if l.HasCoordinates() {
		return fmt.Sprintf("%.4f,%.4f", *l.Lat, *l.Lon)
	}
	return l.Query
}

// ParseLocation 解析位置。优先使用合法的经纬度，其次解析城市文本：
// "City"、"City, ST"（默认美国）、"City, ST, CC"、"lat,lon"。无法解析时返回 false。
func ParseLocation(raw string, lat, lon *float64) (Location, bool) {
	if lat != nil && lon != nil {
		if validCoordinates(*lat, *lon) {
			la, lo := *lat, *lon
			return Location{Lat: &la, Lon: &lo}, true
		}
		return Location{}, false
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, false
	}

	var parts []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.Join(strings.Fields(p), " "); p != "" {
			parts = append(parts, p)
		}
	}

	if len(parts) == 2 {
		la, errLat := strconv.ParseFloat(parts[0], 64)
		lo, errLon := strconv.ParseFloat(parts[1], 64)
		if errLat == nil && errLon == nil {
			if !validCoordinates(la, lo) {
				return Location{}, false
			}
			return Location{Lat: &la, Lon: &lo}, true
		}
	}

	if len(parts) == 0 || len(parts) > 3 || !validPlaceName(parts[0]) {
		return Location{}, false
	}

	switch len(parts) {
	case 1:
		return Location{Query: parts[0]}, true
	case 2:
		second := strings.ToUpper(parts[1])
		if len(second) == 2 && validCode(second) {
			return Location{Query: parts[0] + "," + second + ",US"}, true
		}
		if !validPlaceName(second) {
			return Location{}, false
		}
		return Location{Query: parts[0] + "," + second}, true
	default:
		state, country := strings.ToUpper(parts[1]), strings.ToUpper(parts[2])
		if !validCode(state) || !validCode(country) {
			return Location{}, false
		}
		return Location{Query: parts[0] + "," + state + "," + country}, true
	}
}

func validCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func validPlaceName(s string) bool {
	hasLetter := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case r == ' ' || r == '-' || r == '.' || r == '\'':
		default:
			return false
		}
	}
	return hasLetter
}

func validCode(s string) bool {
	if len(s) < 2 || len(s) > 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

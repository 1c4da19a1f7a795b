package advisor

import (
	"regexp"
	"strings"

	"plantcare-http-service/internal/domain/models"
	"plantcare-http-service/internal/error/apperror"
)

// 字段长度上限（按字符计）
const (
	MaxPlantLen    = 80
	MaxCityLen     = 80
	MaxQuestionLen = 1200
)

var (
	unsafeNameChars = regexp.MustCompile(`[^\p{L}\p{N}\s\-.,'()/&]+`)
	controlChars    = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	repeatedSpaces  = regexp.MustCompile(`[ \t]{2,}`)
)

// Sanitize 清洗请求字段并校验必填项，返回新的请求
func Sanitize(req models.AnswerRequest) (models.AnswerRequest, error) {
	out := req
	out.PlantName = sanitizeName(req.PlantName, MaxPlantLen)
	out.City = sanitizeName(req.City, MaxCityLen)
	out.Question = sanitizeQuestion(req.Question, MaxQuestionLen)
	out.CareContext = strings.ToLower(strings.TrimSpace(req.CareContext))
	if out.CareContext == "" {
		out.CareContext = string(models.CareIndoorPotted)
	}

	if out.Question == "" {
		return out, apperror.NewValidation("question", "question is required and must be under 1200 characters")
	}
	if out.PlantName == "" {
		return out, apperror.NewValidation("plant", "plant name is required")
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return out, apperror.NewValidation("lat", "latitude and longitude must be provided together")
	}
	return out, nil
}

func sanitizeName(s string, max int) string {
	s = truncate(strings.TrimSpace(s), max)
	s = unsafeNameChars.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

func sanitizeQuestion(s string, max int) string {
	s = truncate(strings.TrimSpace(s), max)
	s = controlChars.ReplaceAllString(s, "")
	s = repeatedSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) > max {
		return string(r[:max])
	}
	return s
}

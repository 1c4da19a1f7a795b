package models

import "strings"

// CareContext 种植环境
type CareContext string

const (
	CareIndoorPotted  CareContext = "indoor_potted"
	CareOutdoorGround CareContext = "outdoor_ground"
	CareOutdoorPotted CareContext = "outdoor_potted"
	CareGreenhouse    CareContext = "greenhouse"
)

// 旧版本使用的别名
var careContextAliases = map[string]CareContext{
	"outdoor_bed": CareOutdoorGround,
	"indoor":      CareIndoorPotted,
	"outdoor":     CareOutdoorPotted,
}

// ParseCareContext 解析种植环境，无法识别时返回 false
func ParseCareContext(raw string) (CareContext, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch CareContext(v) {
	case CareIndoorPotted, CareOutdoorGround, CareOutdoorPotted, CareGreenhouse:
		return CareContext(v), true
	}
	if alias, ok := careContextAliases[v]; ok {
		return alias, true
	}
	return CareContext(v), false
}

// Sheltered 室内和温室的植物不受室外天气影响
func (c CareContext) Sheltered() bool {
	return c == CareIndoorPotted || c == CareGreenhouse
}

// Plant 表示用户的一株植物
type Plant struct {
	BaseModel
	UserID      string      `gorm:"type:varchar(64);index;not null" json:"user_id"`
	Name        string      `gorm:"type:varchar(80);not null" json:"name"`       // 常用名，如"Monstera"
	Species     string      `gorm:"type:varchar(120)" json:"species"`             // 学名，如"Monstera deliciosa"
	CareContext CareContext `gorm:"type:varchar(30);not null" json:"care_context"` // indoor_potted, outdoor_ground, outdoor_potted, greenhouse
	City        string      `gorm:"type:varchar(80)" json:"city"`
	Latitude    *float64    `json:"latitude,omitempty"`
	Longitude   *float64    `json:"longitude,omitempty"`

	// Relations - 关联关系
	Reminders []Reminder `gorm:"foreignKey:PlantID" json:"reminders,omitempty"`
}

// LookupName 知识库查询使用的名称，优先学名
func (p *Plant) LookupName() string {
	if strings.TrimSpace(p.Species) != "" {
		return p.Species
	}
	return p.Name
}

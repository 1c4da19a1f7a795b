// Package knowledge 提供确定性的养护知识库：根据植物名称和种植环境返回排序后的养护建议，
// 以及按气候区推荐的入门植物。数据集在启动时加载一次，之后只读，无需加锁。
package knowledge

import (
	_ "embed"
	"fmt"
	"math"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"plantcare-http-service/internal/domain/models"
)

//go:embed tips.yaml
var embeddedDataset []byte

// 建议的匹配层级
const (
	SpecificitySpecies  = "species"
	SpecificityGenus    = "genus"
	SpecificityGeneric  = "generic"
	SpecificityFallback = "fallback"
)

// 建议主题
const (
	TopicWatering    = "watering"
	TopicLight       = "light"
	TopicFertilizing = "fertilizing"
	TopicRepotting   = "repotting"
	TopicTemperature = "temperature"
	TopicGeneral     = "general"
)

// 气候区
const (
	RegionTropical  = "tropical"
	RegionWarm      = "warm"
	RegionTemperate = "temperate"
	RegionCool      = "cool"
)

var regionOrder = []string{RegionTropical, RegionWarm, RegionTemperate, RegionCool}

type tipEntry struct {
	Topic string `yaml:"topic"`
	Text  string `yaml:"text"`
}

type genusEntry struct {
	Name    string     `yaml:"name"`
	Aliases []string   `yaml:"aliases"`
	Tips    []tipEntry `yaml:"tips"`
}

type speciesEntry struct {
	Name    string     `yaml:"name"`
	Aliases []string   `yaml:"aliases"`
	Genus   string     `yaml:"genus"`
	Tips    []tipEntry `yaml:"tips"`
}

// Preset 某气候区推荐的入门植物
type Preset struct {
	Plant       string `yaml:"plant" json:"plant"`
	Why         string `yaml:"why" json:"why"`
	StarterCare string `yaml:"starter_care" json:"starter_care"`
}

type dataset struct {
	Generic map[string][]tipEntry `yaml:"generic"`
	Genera  []genusEntry          `yaml:"genera"`
	Species []speciesEntry        `yaml:"species"`
	Presets map[string][]Preset   `yaml:"presets"`
	Cities  map[string][]string   `yaml:"cities"`
}

// KnowledgeBase 不可变的养护知识库
type KnowledgeBase struct {
	generic map[models.CareContext][]tipEntry
	species map[string]*speciesEntry // 学名和别名 -> 物种
	genera  map[string]*genusEntry   // 属名和别名 -> 属
	presets map[string][]Preset
	cities  map[string][]string
}

// LoadEmbedded 加载内置数据集
func LoadEmbedded() (*KnowledgeBase, error) {
	return Parse(embeddedDataset)
}

// Parse 解析YAML数据集并建立索引
func Parse(data []byte) (*KnowledgeBase, error) {
	var ds dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("解析知识库失败: %w", err)
	}

	kb := &KnowledgeBase{
		generic: make(map[models.CareContext][]tipEntry, len(ds.Generic)),
		species: make(map[string]*speciesEntry),
		genera:  make(map[string]*genusEntry),
		presets: ds.Presets,
		cities:  ds.Cities,
	}

	for ctx, tips := range ds.Generic {
		cc, ok := models.ParseCareContext(ctx)
		if !ok {
			return nil, fmt.Errorf("知识库包含未知的种植环境: %s", ctx)
		}
		kb.generic[cc] = tips
	}

	for i := range ds.Genera {
		g := &ds.Genera[i]
		for _, key := range append([]string{g.Name}, g.Aliases...) {
			kb.genera[Normalize(key)] = g
		}
	}

	for i := range ds.Species {
		s := &ds.Species[i]
		if s.Genus != "" {
			if _, ok := kb.genera[Normalize(s.Genus)]; !ok {
				return nil, fmt.Errorf("物种 %s 引用了未知的属 %s", s.Name, s.Genus)
			}
		}
		for _, key := range append([]string{s.Name}, s.Aliases...) {
			kb.species[Normalize(key)] = s
		}
	}

	if _, ok := kb.presets[RegionTemperate]; !ok {
		return nil, fmt.Errorf("知识库缺少默认气候区 %s 的推荐", RegionTemperate)
	}

	return kb, nil
}

// Normalize 去除首尾空白、转小写并合并连续空白
func Normalize(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// Lookup 返回按匹配层级排序的养护建议：物种 > 属 > 通用。
// 已知环境下结果永不为空；未知环境只返回一条带标记的兜底建议。
func (kb *KnowledgeBase) Lookup(plantName, careContext string) []models.CareTip {
	cc, ok := models.ParseCareContext(careContext)
	if !ok {
		return []models.CareTip{{
			Topic:       TopicGeneral,
			Specificity: SpecificityFallback,
			Text: fmt.Sprintf("Unknown care context %q: general guidance only. Give bright, indirect light, "+
				"water when the top 2-3 cm of soil are dry and make sure the pot drains.", careContext),
		}}
	}

	key := Normalize(plantName)
	var tips []models.CareTip

	if sp, ok := kb.species[key]; ok && key != "" {
		tips = appendTips(tips, sp.Tips, SpecificitySpecies, sp.Name)
		if g, ok := kb.genera[Normalize(sp.Genus)]; ok && sp.Genus != "" {
			tips = appendTips(tips, g.Tips, SpecificityGenus, g.Name)
		}
	} else if g := kb.matchGenus(key); g != nil {
		tips = appendTips(tips, g.Tips, SpecificityGenus, g.Name)
	}

	return appendTips(tips, kb.generic[cc], SpecificityGeneric, "")
}

// 属匹配：整个名称是属的别名，或者第一个词是属名
func (kb *KnowledgeBase) matchGenus(key string) *genusEntry {
	if key == "" {
		return nil
	}
	if g, ok := kb.genera[key]; ok {
		return g
	}
	first := strings.SplitN(key, " ", 2)[0]
	if g, ok := kb.genera[first]; ok {
		return g
	}
	return nil
}

func appendTips(dst []models.CareTip, src []tipEntry, specificity, matched string) []models.CareTip {
	for _, t := range src {
		dst = append(dst, models.CareTip{
			Topic:       t.Topic,
			Text:        t.Text,
			Specificity: specificity,
			MatchedName: matched,
		})
	}
	return dst
}

// topicPatterns 按顺序匹配，关键词须为完整单词，"spot" 或 "potted" 不算盆
var topicPatterns = []struct {
	topic string
	re    *regexp.Regexp
}{
	{TopicWatering, regexp.MustCompile(`\bwater(?:s|ed|ing)?\b`)},
	{TopicLight, regexp.MustCompile(`\b(?:light|lighting|sun|sunny|sunlight|shade|shady)\b`)},
	{TopicFertilizing, regexp.MustCompile(`\b(?:fertili[sz]\w*|feed|feeding)\b`)},
	{TopicRepotting, regexp.MustCompile(`\b(?:repot\w*|pot|pots|potting)\b`)},
	{TopicTemperature, regexp.MustCompile(`\b(?:cold|heat|frost\w*|temperatures?)\b`)},
}

// DetectTopic 根据问题中的关键词判断主题，无法判断时返回 general
func DetectTopic(question string) string {
	q := strings.ToLower(question)
	for _, p := range topicPatterns {
		if p.re.MatchString(q) {
			return p.topic
		}
	}
	return TopicGeneral
}

// RankForTopic 把与主题匹配的建议提前，其余保持原有顺序，最多返回 limit 条
func RankForTopic(tips []models.CareTip, topic string, limit int) []models.CareTip {
	ranked := make([]models.CareTip, 0, len(tips))
	for _, t := range tips {
		if t.Topic == topic {
			ranked = append(ranked, t)
		}
	}
	for _, t := range tips {
		if t.Topic != topic {
			ranked = append(ranked, t)
		}
	}
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// RegionFromLatLon 按纬度绝对值粗略划分气候带
func RegionFromLatLon(lat, lon float64) string {
	abs := math.Abs(lat)
	switch {
	case abs < 23.5:
		return RegionTropical
	case abs < 35:
		return RegionWarm
	case abs < 45:
		return RegionTemperate
	default:
		return RegionCool
	}
}

// RegionFromCity 按城市关键词判断气候区，默认温带
func (kb *KnowledgeBase) RegionFromCity(city string) string {
	c := Normalize(city)
	if c == "" {
		return RegionTemperate
	}
	for _, region := range regionOrder {
		for _, keyword := range kb.cities[region] {
			if strings.Contains(c, keyword) {
				return region
			}
		}
	}
	return RegionTemperate
}

// Presets 返回气候区的入门植物，未知气候区返回温带推荐
func (kb *KnowledgeBase) Presets(region string) []Preset {
	if p, ok := kb.presets[region]; ok {
		return p
	}
	return kb.presets[RegionTemperate]
}

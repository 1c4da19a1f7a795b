package controllers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"plantcare-http-service/internal/domain/knowledge"
	"plantcare-http-service/internal/domain/models"
	"plantcare-http-service/internal/domain/services/container"
	"plantcare-http-service/internal/error/code"
	"plantcare-http-service/internal/error/response"
)

const maxTipsPerRequest = 10

// KnowledgeController 知识库查询，结果只依赖参数，可以缓存
type KnowledgeController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewKnowledgeController 创建知识库控制器
func NewKnowledgeController(ctx *gin.Context, container *container.ServiceContainer) *KnowledgeController {
	return &KnowledgeController{
		Ctx:       ctx,
		Container: container,
	}
}

func (c *KnowledgeController) kb() *knowledge.KnowledgeBase {
	return c.Container.GetService("knowledge").(*knowledge.KnowledgeBase)
}

// GetTips 按植物和种植环境查询养护建议，可选按主题排序
func (c *KnowledgeController) GetTips() {
	plant := strings.TrimSpace(c.Ctx.Query("plant"))
	if plant == "" {
		response.ParamError(c.Ctx, "plant 参数不能为空")
		return
	}

	careContext := c.Ctx.DefaultQuery("context", string(models.CareIndoorPotted))
	if cc, ok := models.ParseCareContext(careContext); ok {
		careContext = string(cc)
	} else {
		response.Fail(c.Ctx, code.ErrInvalidCareContext, nil)
		return
	}

	tips := c.kb().Lookup(plant, careContext)
	topic := c.Ctx.Query("topic")
	if topic == "" && c.Ctx.Query("question") != "" {
		topic = knowledge.DetectTopic(c.Ctx.Query("question"))
	}
	if topic != "" {
		tips = knowledge.RankForTopic(tips, topic, maxTipsPerRequest)
	}

	response.Success(c.Ctx, gin.H{
		"plant":        plant,
		"care_context": careContext,
		"topic":        topic,
		"tips":         tips,
	})
}

// GetPresets 按气候区推荐入门植物；region 优先，其次是坐标，最后是城市
func (c *KnowledgeController) GetPresets() {
	region := strings.ToLower(strings.TrimSpace(c.Ctx.Query("region")))
	if region == "" {
		lat, latErr := strconv.ParseFloat(c.Ctx.Query("lat"), 64)
		lon, lonErr := strconv.ParseFloat(c.Ctx.Query("lon"), 64)
		if latErr == nil && lonErr == nil {
			region = knowledge.RegionFromLatLon(lat, lon)
		} else {
			region = c.kb().RegionFromCity(c.Ctx.Query("city"))
		}
	}

	switch region {
	case knowledge.RegionTropical, knowledge.RegionWarm, knowledge.RegionTemperate, knowledge.RegionCool:
	default:
		region = knowledge.RegionTemperate
	}

	response.Success(c.Ctx, gin.H{
		"region":  region,
		"presets": c.kb().Presets(region),
	})
}

// HandleKnowledgeFunc 返回处理知识库请求的函数
func HandleKnowledgeFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewKnowledgeController(ctx, container)

		switch method {
		case "getTips":
			controller.GetTips()
		case "getPresets":
			controller.GetPresets()
		default:
			response.FailWithMessage(ctx, code.ErrBind, "无效的方法", nil)
		}
	}
}

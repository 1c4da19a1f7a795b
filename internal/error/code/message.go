package code

// 错误码消息映射
var codeMessageMap = map[int]string{
	// 通用错误码
	ErrSuccess:         "成功",
	ErrUnknown:         "未知错误",
	ErrBind:            "请求参数绑定错误",
	ErrValidation:      "请求参数验证错误",
	ErrTokenInvalid:    "无效的认证令牌",
	ErrTooManyRequests: "请求过于频繁，请稍后再试",

	// 数据库相关错误码
	ErrDatabase:       "数据库错误",
	ErrRecordNotFound: "记录不存在",

	// 植物与提醒相关错误码
	ErrPlantNotFound:        "植物不存在",
	ErrReminderNotFound:     "提醒不存在",
	ErrAdjustmentNotFound:   "调整建议不存在",
	ErrAdjustmentNotPending: "调整建议已处理，无法再次操作",
	ErrAdjustmentConflict:   "该提醒已有待处理的调整建议",
	ErrInvalidCareContext:   "种植环境无效",
	ErrInvalidSnooze:        "延后天数必须在1到30之间",

	// 养护问答相关错误码
	ErrQuestionInvalid:    "问题内容无效",
	ErrAskRateLimited:     "提问过于频繁，请稍后再试",
	ErrAdvisorUnavailable: "问答服务暂时不可用",
}

// 错误码HTTP状态码映射
var codeStatusMap = map[int]int{
	// 通用错误码
	ErrSuccess:         StatusOK,
	ErrUnknown:         StatusInternalServerError,
	ErrBind:            StatusBadRequest,
	ErrValidation:      StatusBadRequest,
	ErrTokenInvalid:    StatusUnauthorized,
	ErrTooManyRequests: StatusTooManyRequests,

	// 数据库相关错误码
	ErrDatabase:       StatusInternalServerError,
	ErrRecordNotFound: StatusNotFound,

	// 植物与提醒相关错误码
	ErrPlantNotFound:        StatusNotFound,
	ErrReminderNotFound:     StatusNotFound,
	ErrAdjustmentNotFound:   StatusNotFound,
	ErrAdjustmentNotPending: StatusConflict,
	ErrAdjustmentConflict:   StatusConflict,
	ErrInvalidCareContext:   StatusBadRequest,
	ErrInvalidSnooze:        StatusBadRequest,

	// 养护问答相关错误码
	ErrQuestionInvalid:    StatusBadRequest,
	ErrAskRateLimited:     StatusTooManyRequests,
	ErrAdvisorUnavailable: StatusServiceUnavailable,
}

// GetMessage 获取错误码对应的消息
func GetMessage(code int) string {
	if msg, ok := codeMessageMap[code]; ok {
		return msg
	}
	return "未知错误"
}

// GetStatus 获取错误码对应的HTTP状态码
func GetStatus(code int) int {
	if status, ok := codeStatusMap[code]; ok {
		return status
	}
	return StatusInternalServerError
}

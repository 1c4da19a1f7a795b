package code

// HTTP状态码.
const (
	// StatusOK - 200: 成功.
	StatusOK = 200
	// StatusBadRequest - 400: 请求参数错误.
	StatusBadRequest = 400
	// StatusUnauthorized - 401: 未授权.
	StatusUnauthorized = 401
	// StatusNotFound - 404: 资源不存在.
	StatusNotFound = 404
	// StatusConflict - 409: 状态冲突.
	StatusConflict = 409
	// StatusTooManyRequests - 429: 请求过多.
	StatusTooManyRequests = 429
	// StatusInternalServerError - 500: 服务器内部错误.
	StatusInternalServerError = 500
	// StatusServiceUnavailable - 503: 服务不可用.
	StatusServiceUnavailable = 503
)

// 通用错误码 (100xxx).
const (
	// ErrSuccess - 200: 成功.
	ErrSuccess int = iota + 100000
	// ErrUnknown - 500: 未知错误.
	ErrUnknown
	// ErrBind - 400: 请求参数绑定错误.
	ErrBind
	// ErrValidation - 400: 请求参数验证错误.
	ErrValidation
	// ErrTokenInvalid - 401: 令牌无效.
	ErrTokenInvalid
	// ErrTooManyRequests - 429: 请求频率过高.
	ErrTooManyRequests
)

// 数据库相关错误码 (105xxx).
const (
	// ErrDatabase - 500: 数据库错误.
	ErrDatabase int = iota + 105000
	// ErrRecordNotFound - 404: 记录不存在.
	ErrRecordNotFound
)

// 植物与提醒相关错误码 (106xxx).
const (
	// ErrPlantNotFound - 404: 植物不存在.
	ErrPlantNotFound int = iota + 106000
	// ErrReminderNotFound - 404: 提醒不存在.
	ErrReminderNotFound
	// ErrAdjustmentNotFound - 404: 调整建议不存在.
	ErrAdjustmentNotFound
	// ErrAdjustmentNotPending - 409: 调整建议已处理.
	ErrAdjustmentNotPending
	// ErrAdjustmentConflict - 409: 已存在其他待处理的调整建议.
	ErrAdjustmentConflict
	// ErrInvalidCareContext - 400: 种植环境无效.
	ErrInvalidCareContext
	// ErrInvalidSnooze - 400: 延后天数无效.
	ErrInvalidSnooze
)

// 养护问答相关错误码 (107xxx).
const (
	// ErrQuestionInvalid - 400: 问题无效.
	ErrQuestionInvalid int = iota + 107000
	// ErrAskRateLimited - 429: 提问过于频繁.
	ErrAskRateLimited
	// ErrAdvisorUnavailable - 503: 问答服务不可用.
	ErrAdvisorUnavailable
)

package http

// ErrorResponse 错误响应（所有API共用）
type ErrorResponse struct {
	Code    int    `json:"code"`             // 错误码（非0表示错误）
	Message string `json:"message"`          // 错误消息
	Detail  string `json:"detail,omitempty"` // 错误详情（可选）
}

// 错误码: 前三位是 HTTP 状态码
const (
	CodePanic          = 50000
	CodeBadRequest     = 40001
	CodeValidation     = 40002
	CodeUnauthorized   = 40101
	CodeInvalidToken   = 40102
	CodeNotFound       = 40401
	CodeTooLarge       = 41301
	CodeRateLimited    = 42901
	CodeInternal       = 50001
	CodeUpstream       = 50201
	CodeUnavailable    = 50301
	CodeGatewayTimeout = 50401
)

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string, detail ...string) *ErrorResponse {
	resp := &ErrorResponse{
		Code:    code,
		Message: message,
	}
	if len(detail) > 0 && detail[0] != "" {
		resp.Detail = detail[0]
	}
	return resp
}

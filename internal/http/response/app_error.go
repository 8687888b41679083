package response

import "net/http"

// AppError 业务错误包装：Code 为信封业务码，Err 为原始错误（仅记录日志，不返回给客户端）
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus 运维接口使用的 HTTP 状态码
func (e *AppError) HTTPStatus() int {
	return HTTPStatusFor(e.Code)
}

// WrapError 包装错误
func WrapError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// HTTPStatusFor 业务码转 HTTP 状态码，未知业务码按 500 处理
func HTTPStatusFor(code int) int {
	switch code {
	case CodeOK:
		return http.StatusOK
	case CodeBadRequest, CodeUnauthorized, CodeForbidden, CodeNotFound, CodeConflict,
		CodeTooManyRequests, CodeInternal, CodeBadGateway, CodeServiceUnavailable:
		return code
	default:
		return http.StatusInternalServerError
	}
}

package venue

import (
	"errors"
	"fmt"
)

// 非可重试的鉴权错误码：凭证本身有问题，重试无意义
const (
	CodeInvalidCredential    = "InvalidCredential"
	CodeAuthorizationExpired = "AuthorizationExpired"
	CodeClientDisabled       = "ClientDisabled"
)

// APIError venue 返回的协议级错误
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("venue api error [%s]: %s", e.Code, e.Message)
}

// Retryable 该错误是否可重试
// 凭证无效/过期/账号被禁用是终止性错误，重试只会掩盖问题。
func (e *APIError) Retryable() bool {
	switch e.Code {
	case CodeInvalidCredential, CodeAuthorizationExpired, CodeClientDisabled:
		return false
	}
	return true
}

// IsTerminalAuthError err 是否为不可重试的鉴权失败
func IsTerminalAuthError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return !apiErr.Retryable()
	}
	return false
}

// internal/api/response_helpers.go
package api

import (
	"net/http"
	"time"

	apperrors "github.com/Corphon/IntoTheDarkMCP/internal/errors"
	"github.com/gin-gonic/gin"
)

// APIResponse 标准API响应格式
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"` // 用于调试和追踪
}

// APIError 标准错误格式
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ResponseHelper 响应助手类
type ResponseHelper struct{}

// NewResponseHelper 创建响应助手
func NewResponseHelper() *ResponseHelper {
	return &ResponseHelper{}
}

// getRequestID 从上下文读取请求ID
func (rh *ResponseHelper) getRequestID(c *gin.Context) string {
	if id, exists := c.Get("request_id"); exists {
		if requestID, ok := id.(string); ok {
			return requestID
		}
	}
	return ""
}

// Success 成功响应
func (rh *ResponseHelper) Success(c *gin.Context, data interface{}, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}

	if len(message) > 0 {
		response.Message = message[0]
	}

	c.JSON(http.StatusOK, response)
}

// Error 错误响应
func (rh *ResponseHelper) Error(c *gin.Context, statusCode int, errorCode, message string, details ...string) {
	apiError := &APIError{
		Code:    errorCode,
		Message: message,
	}

	if len(details) > 0 {
		apiError.Details = details[0]
	}

	response := &APIResponse{
		Success:   false,
		Error:     apiError,
		Timestamp: time.Now(),
		RequestID: rh.getRequestID(c),
	}

	c.JSON(statusCode, response)
}

// BadRequest 400错误响应
func (rh *ResponseHelper) BadRequest(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusBadRequest, ErrorBadRequest, message, details...)
}

// NotFound 404错误响应
func (rh *ResponseHelper) NotFound(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusNotFound, ErrorNotFound, message, details...)
}

// InternalError 500错误响应
func (rh *ResponseHelper) InternalError(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusInternalServerError, ErrorInternalError, message, details...)
}

// EngineError 把引擎错误映射为HTTP响应
// 成功/失败由HTTP状态码并行表达，错误种类编码在响应体内
func (rh *ResponseHelper) EngineError(c *gin.Context, err error) {
	statusCode, errorCode := mapEngineError(err)
	rh.Error(c, statusCode, errorCode, err.Error())
}

// mapEngineError 引擎错误类型到HTTP状态码与API错误代码的映射
func mapEngineError(err error) (int, string) {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound, ErrorSaveMissing
	case apperrors.ErrorTypeInvalidChoice:
		return http.StatusBadRequest, ErrorChoiceInvalid
	case apperrors.ErrorTypeNoChoices:
		// 终局信号：不是真正的错误，为协议统一性按错误上报
		return http.StatusConflict, ErrorNoChoices
	case apperrors.ErrorTypeUnknownCommand:
		return http.StatusBadRequest, ErrorUnknownCommand
	case apperrors.ErrorTypeMalformedArgument:
		return http.StatusBadRequest, ErrorMalformedArgument
	case apperrors.ErrorTypeCorruptData:
		return http.StatusUnprocessableEntity, ErrorCorruptData
	case apperrors.ErrorTypePersistence:
		return http.StatusInternalServerError, ErrorPersistence
	case apperrors.ErrorTypeInvalidTrait:
		return http.StatusInternalServerError, ErrorInvalidTrait
	case apperrors.ErrorTypeContent:
		return http.StatusInternalServerError, ErrorContentInvalid
	default:
		return http.StatusInternalServerError, ErrorInternalError
	}
}

// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrorType 定义引擎错误类型
type ErrorType string

const (
	// 内容错误：剧本图在加载时校验失败，致命，引擎拒绝启动
	ErrorTypeContent ErrorType = "content_error"
	// 未找到：场景不存在 / 存档不存在
	ErrorTypeNotFound ErrorType = "not_found"
	// 无效选择：选项索引超出当前场景范围
	ErrorTypeInvalidChoice ErrorType = "invalid_choice"
	// 终局场景：当前场景没有任何选项
	ErrorTypeNoChoices ErrorType = "no_choices_available"
	// 持久化失败：存档读写出错，内存状态已回滚
	ErrorTypePersistence ErrorType = "persistence_error"
	// 存档损坏：文件不可解析或内容非法
	ErrorTypeCorruptData ErrorType = "corrupt_data"
	// 未知命令
	ErrorTypeUnknownCommand ErrorType = "unknown_command"
	// 参数格式错误：索引缺失或不是整数
	ErrorTypeMalformedArgument ErrorType = "malformed_argument"
	// 无效记忆特质：内容或程序错误，正常内容不会触发
	ErrorTypeInvalidTrait ErrorType = "invalid_trait"
)

// AppError 应用程序错误结构
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
	Code    string // 用户友好的错误代码
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 实现错误链接
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError 创建新的 AppError
func NewAppError(errType ErrorType, message string, originalError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     originalError,
		Code:    generateErrorCode(errType),
	}
}

// NewContentError 创建内容错误
func NewContentError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeContent, message, originalError)
}

// NewNotFoundError 创建未找到错误
func NewNotFoundError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeNotFound, message, originalError)
}

// NewInvalidChoiceError 创建无效选择错误
func NewInvalidChoiceError(message string) *AppError {
	return NewAppError(ErrorTypeInvalidChoice, message, nil)
}

// NewNoChoicesError 创建终局场景错误
func NewNoChoicesError(message string) *AppError {
	return NewAppError(ErrorTypeNoChoices, message, nil)
}

// NewPersistenceError 创建持久化错误
func NewPersistenceError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypePersistence, message, originalError)
}

// NewCorruptDataError 创建存档损坏错误
func NewCorruptDataError(message string, originalError error) *AppError {
	return NewAppError(ErrorTypeCorruptData, message, originalError)
}

// NewUnknownCommandError 创建未知命令错误
func NewUnknownCommandError(command string) *AppError {
	return NewAppError(ErrorTypeUnknownCommand, fmt.Sprintf("未知命令: %s", command), nil)
}

// NewMalformedArgumentError 创建参数格式错误
func NewMalformedArgumentError(message string) *AppError {
	return NewAppError(ErrorTypeMalformedArgument, message, nil)
}

// NewInvalidTraitError 创建无效特质错误
func NewInvalidTraitError(trait string) *AppError {
	return NewAppError(ErrorTypeInvalidTrait, fmt.Sprintf("无效的记忆特质: %s", trait), nil)
}

// TypeOf 返回错误对应的引擎错误类型，非 AppError 返回空串
func TypeOf(err error) ErrorType {
	var appError *AppError
	if errors.As(err, &appError) {
		return appError.Type
	}
	return ""
}

// IsContentError 检查是否为内容错误
func IsContentError(err error) bool {
	return TypeOf(err) == ErrorTypeContent
}

// IsNotFoundError 检查是否为未找到错误
func IsNotFoundError(err error) bool {
	return TypeOf(err) == ErrorTypeNotFound
}

// IsInvalidChoiceError 检查是否为无效选择错误
func IsInvalidChoiceError(err error) bool {
	return TypeOf(err) == ErrorTypeInvalidChoice
}

// IsNoChoicesError 检查是否为终局场景错误
func IsNoChoicesError(err error) bool {
	return TypeOf(err) == ErrorTypeNoChoices
}

// IsPersistenceError 检查是否为持久化错误
func IsPersistenceError(err error) bool {
	return TypeOf(err) == ErrorTypePersistence
}

// IsCorruptDataError 检查是否为存档损坏错误
func IsCorruptDataError(err error) bool {
	return TypeOf(err) == ErrorTypeCorruptData
}

// IsUnknownCommandError 检查是否为未知命令错误
func IsUnknownCommandError(err error) bool {
	return TypeOf(err) == ErrorTypeUnknownCommand
}

// IsMalformedArgumentError 检查是否为参数格式错误
func IsMalformedArgumentError(err error) bool {
	return TypeOf(err) == ErrorTypeMalformedArgument
}

// IsInvalidTraitError 检查是否为无效特质错误
func IsInvalidTraitError(err error) bool {
	return TypeOf(err) == ErrorTypeInvalidTrait
}

// generateErrorCode 根据错误类型生成错误代码
func generateErrorCode(errType ErrorType) string {
	switch errType {
	case ErrorTypeContent:
		return "CONTENT_ERROR"
	case ErrorTypeNotFound:
		return "NOT_FOUND"
	case ErrorTypeInvalidChoice:
		return "INVALID_CHOICE"
	case ErrorTypeNoChoices:
		return "NO_CHOICES_AVAILABLE"
	case ErrorTypePersistence:
		return "PERSISTENCE_ERROR"
	case ErrorTypeCorruptData:
		return "CORRUPT_DATA"
	case ErrorTypeUnknownCommand:
		return "UNKNOWN_COMMAND"
	case ErrorTypeMalformedArgument:
		return "MALFORMED_ARGUMENT"
	case ErrorTypeInvalidTrait:
		return "INVALID_TRAIT"
	default:
		return "UNKNOWN_ERROR"
	}
}

// WrapError 包装现有错误
func WrapError(err error, message string, errType ErrorType) error {
	if err == nil {
		return nil
	}

	var appError *AppError
	if errors.As(err, &appError) {
		// 如果已经是 AppError，只更新消息
		return &AppError{
			Type:    appError.Type,
			Message: fmt.Sprintf("%s: %s", message, appError.Message),
			Err:     appError,
			Code:    appError.Code,
		}
	}

	// 否则创建新的 AppError
	return NewAppError(errType, message, err)
}

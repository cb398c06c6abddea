// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"

	// 命令协议相关错误
	ErrorUnknownCommand    = "UNKNOWN_COMMAND"
	ErrorMalformedArgument = "MALFORMED_ARGUMENT"

	// 场景与选择相关错误
	ErrorSceneNotFound = "SCENE_NOT_FOUND"
	ErrorChoiceInvalid = "INVALID_CHOICE"
	ErrorNoChoices     = "NO_CHOICES_AVAILABLE"
	ErrorInvalidTrait  = "INVALID_TRAIT"

	// 存档相关错误
	ErrorPersistence = "PERSISTENCE_ERROR"
	ErrorCorruptData = "CORRUPT_DATA"
	ErrorSaveMissing = "SAVE_NOT_FOUND"

	// 内容相关错误
	ErrorContentInvalid = "CONTENT_ERROR"
)

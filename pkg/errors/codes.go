package errors

import "net/http"

// ErrorCode is a string identifier for a specific failure category.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes shared by every layer.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_005"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_006"
	ErrCodeTimeout            ErrorCode = "COMMON_007"
	ErrCodeValidation         ErrorCode = "COMMON_008"
	ErrCodeSerialization      ErrorCode = "COMMON_009"
	ErrCodeDatabaseError      ErrorCode = "COMMON_010"
	ErrCodeCacheError         ErrorCode = "COMMON_011"
	ErrCodeExternalService    ErrorCode = "COMMON_012"
)

// Anonymization engine error codes.
const (
	// ErrCodePatternCompile marks a malformed detector pattern in the
	// configuration. It is fatal at initialization time; the engine refuses
	// to start rather than silently skipping the detector.
	ErrCodePatternCompile ErrorCode = "ANON_001"

	// ErrCodeInvalidStrategy marks an unsupported anonymization strategy.
	ErrCodeInvalidStrategy ErrorCode = "ANON_002"

	// ErrCodeUnknownPIIType marks an include_pii_types entry that matches
	// neither a configured label nor a configured pattern name.
	ErrCodeUnknownPIIType ErrorCode = "ANON_003"

	// ErrCodeDocumentTimeout marks a batch document abandoned because its
	// per-item deadline expired.
	ErrCodeDocumentTimeout ErrorCode = "ANON_004"

	// ErrCodeDocumentPanic marks a batch document that failed with a
	// recovered panic. The rest of the batch is unaffected.
	ErrCodeDocumentPanic ErrorCode = "ANON_005"
)

// Model serving error codes.
const (
	ErrCodeModelUnavailable ErrorCode = "MDL_001"
	ErrCodeInferenceFailed  ErrorCode = "MDL_002"
	ErrCodeModelBadResponse ErrorCode = "MDL_003"
	ErrCodeModelNotLoaded   ErrorCode = "MDL_004"
)

// Chat pipeline error codes.
const (
	ErrCodeKnowledgeBaseInvalid  ErrorCode = "CHAT_001"
	ErrCodeTemplateFieldMissing  ErrorCode = "CHAT_002"
	ErrCodeIntentPredictFailed   ErrorCode = "CHAT_003"
	ErrCodeChatLogPersistFailed  ErrorCode = "CHAT_004"
	ErrCodeUserNotFound          ErrorCode = "CHAT_005"
	ErrCodeAuditPublishFailed    ErrorCode = "CHAT_006"
	ErrCodeAuditArchiveFailed    ErrorCode = "CHAT_007"
)

// httpStatusByCode maps error codes to the HTTP status returned by the API
// layer. Codes absent from the map report 500.
var httpStatusByCode = map[ErrorCode]int{
	ErrCodeBadRequest:           http.StatusBadRequest,
	ErrCodeValidation:           http.StatusBadRequest,
	ErrCodeInvalidStrategy:      http.StatusBadRequest,
	ErrCodeUnknownPIIType:       http.StatusBadRequest,
	ErrCodeNotFound:             http.StatusNotFound,
	ErrCodeUserNotFound:         http.StatusNotFound,
	ErrCodeConflict:             http.StatusConflict,
	ErrCodeTooManyRequests:      http.StatusTooManyRequests,
	ErrCodeServiceUnavailable:   http.StatusServiceUnavailable,
	ErrCodeModelUnavailable:     http.StatusServiceUnavailable,
	ErrCodeTimeout:              http.StatusGatewayTimeout,
	ErrCodeDocumentTimeout:      http.StatusGatewayTimeout,
	ErrCodeTemplateFieldMissing: http.StatusUnprocessableEntity,
}

// HTTPStatus returns the HTTP status code associated with c.
func (c ErrorCode) HTTPStatus() int {
	if s, ok := httpStatusByCode[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

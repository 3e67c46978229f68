package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeMissingParameter     ErrorCode = 102
	ErrCodeEmptySymbols         ErrorCode = 103
	ErrCodeInvalidExchange      ErrorCode = 104
	ErrCodeIncompatibleVersion  ErrorCode = 105
	ErrCodeInvalidOrder         ErrorCode = 106

	// REST errors (200-299)
	ErrCodeRequestFailed    ErrorCode = 200
	ErrCodeUnexpectedStatus ErrorCode = 201
	ErrCodeNotFound         ErrorCode = 202
	ErrCodeUnauthorized     ErrorCode = 203

	// Stream errors (300-399)
	ErrCodeConnectionFailed     ErrorCode = 300
	ErrCodeHandshakeFailed      ErrorCode = 301
	ErrCodeConnectionLost       ErrorCode = 302
	ErrCodeDecodeFailed         ErrorCode = 303
	ErrCodeMissingDiscriminator ErrorCode = 304
	ErrCodeUnknownDiscriminator ErrorCode = 305
	ErrCodeUnexpectedFrameType  ErrorCode = 306
	ErrCodeSessionReused        ErrorCode = 307

	// Recorder errors (400-499)
	ErrCodeRecorderNotInitialized ErrorCode = 400
	ErrCodeRecorderWriteFailed    ErrorCode = 401
	ErrCodeRecorderExportFailed   ErrorCode = 402

	// Callback errors (800-899)
	ErrCodeCallbackFailed ErrorCode = 800
)

package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation and configuration errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidCandidate     ErrorCode = 102
	ErrCodeInvalidExitSignal    ErrorCode = 103
	ErrCodeInvalidStopPrice     ErrorCode = 104
	ErrCodeMissingParameter     ErrorCode = 105

	// Data errors (200-299)
	ErrCodeDataUnavailable  ErrorCode = 200
	ErrCodeDataNotFound     ErrorCode = 201
	ErrCodeQueryFailed      ErrorCode = 202
	ErrCodeDataCorrupted    ErrorCode = 203
	ErrCodeDataOutOfOrder   ErrorCode = 204
	ErrCodeInsufficientData ErrorCode = 205

	// Policy errors (300-399)
	ErrCodePolicyFault        ErrorCode = 300
	ErrCodeScannerFault       ErrorCode = 301
	ErrCodeExitPolicyFault    ErrorCode = 302
	ErrCodeSizerFault         ErrorCode = 303
	ErrCodeStrategyNotFound   ErrorCode = 304
	ErrCodeStrategyDuplicated ErrorCode = 305

	// Sizing and portfolio errors (400-499)
	ErrCodeSizingRejected      ErrorCode = 400
	ErrCodeInsufficientCash    ErrorCode = 401
	ErrCodeMaxPositionsReached ErrorCode = 402
	ErrCodePositionNotFound    ErrorCode = 403
	ErrCodePositionAlreadyOpen ErrorCode = 404
	ErrCodeInvalidExitFraction ErrorCode = 405
	ErrCodePartialNotSupported ErrorCode = 406

	// Backtest run errors (500-599)
	ErrCodeRunAborted        ErrorCode = 500
	ErrCodeFaultBudgetSpent  ErrorCode = 501
	ErrCodeJournalFailed     ErrorCode = 502
	ErrCodeResultsWriteError ErrorCode = 503

	// Market data provider errors (600-699)
	ErrCodeProviderNotFound   ErrorCode = 600
	ErrCodeProviderFetch      ErrorCode = 601
	ErrCodeInvalidGranularity ErrorCode = 602
)

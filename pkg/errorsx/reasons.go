package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonSessionNotFound ReasonCode = "session_not_found"
	ReasonSessionExpired  ReasonCode = "session_expired"

	ReasonClientConfigNotFound ReasonCode = "client_config_not_found"
	ReasonClientConfigLoad     ReasonCode = "client_config_load"

	ReasonCompletionFailed    ReasonCode = "completion_failed"
	ReasonCompletionRateLimit ReasonCode = "completion_rate_limit"

	ReasonLogWrite ReasonCode = "log_write"

	ReasonTransportInvalidSignature ReasonCode = "webhook_invalid_signature"
	ReasonTransferFailed            ReasonCode = "transfer_failed"
	ReasonTranscribeFailed          ReasonCode = "transcribe_failed"
)

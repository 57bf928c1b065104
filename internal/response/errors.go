package response

// ErrCode is a typed error code enum for consistent API error identification.
// Codes double as i18n message ids.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation        ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload    ErrCode = "INVALID_PAYLOAD"
	ErrSessionIDRequired ErrCode = "SESSION_ID_REQUIRED"

	// ─── Verification ──────────────────────────────────────────────────
	ErrVerificationFailed ErrCode = "VERIFICATION_FAILED"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrSessionNotFound  ErrCode = "SESSION_NOT_FOUND"
	ErrNotFound         ErrCode = "NOT_FOUND"
	ErrBankUnavailable  ErrCode = "QUESTION_BANK_UNAVAILABLE"
	ErrLiveFeedDisabled ErrCode = "LIVE_FEED_UNAVAILABLE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns the default English message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrSessionIDRequired:
		return "A session ID is required for this action."

	// ─── Verification ──────────────────────────────────────────────────
	case ErrVerificationFailed:
		return "Human verification failed. Please try again."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrSessionNotFound:
		return "Session ID does not exist."
	case ErrNotFound:
		return "Resource not found."
	case ErrBankUnavailable:
		return "The question bank is not available right now."
	case ErrLiveFeedDisabled:
		return "Live session updates are not enabled on this server."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}

package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"
	ErrAccountBlocked     ErrCode = "ACCOUNT_BLOCKED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrProctorAccessOnly ErrCode = "PROCTOR_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrConflict        ErrCode = "CONFLICT"
	ErrActionForbidden ErrCode = "ACTION_FORBIDDEN"

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	ErrNotYetOpen       ErrCode = "SESSION_NOT_YET_OPEN"
	ErrTimeExpired      ErrCode = "TIME_EXPIRED"
	ErrAttemptPaused    ErrCode = "ATTEMPT_PAUSED"
	ErrAlreadyCompleted ErrCode = "ATTEMPT_ALREADY_COMPLETED"
	ErrAttemptNotDone   ErrCode = "ATTEMPT_NOT_COMPLETED"
	ErrNoQuestions      ErrCode = "NO_QUESTIONS"

	// ─── Violations ────────────────────────────────────────────────────
	ErrInvalidViolationType ErrCode = "INVALID_VIOLATION_TYPE"

	// ─── Grading ───────────────────────────────────────────────────────
	ErrNotManuallyGradable ErrCode = "NOT_MANUALLY_GRADABLE"
	ErrPointsExceedMax     ErrCode = "POINTS_EXCEED_MAX"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Username or password is incorrect."
	case ErrSessionActive:
		return "You are already signed in on another device."
	case ErrSessionInvalidated:
		return "Your session has ended. Please sign in again."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."
	case ErrAccountBlocked:
		return "This account has been blocked. Contact your proctor."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrProctorAccessOnly:
		return "This resource is restricted to proctors."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "The ID format is invalid."
	case ErrInvalidPayload:
		return "The request payload is invalid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "The resource was not found."
	case ErrConflict:
		return "The resource already exists."
	case ErrActionForbidden:
		return "This action is not allowed."

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	case ErrNotYetOpen:
		return "The exam session has not opened yet."
	case ErrTimeExpired:
		return "Time is up. The attempt has been submitted."
	case ErrAttemptPaused:
		return "The attempt is paused by a proctor."
	case ErrAlreadyCompleted:
		return "The attempt has already been completed."
	case ErrAttemptNotDone:
		return "The attempt has not been completed yet."
	case ErrNoQuestions:
		return "This exam has no questions."

	// ─── Violations ────────────────────────────────────────────────────
	case ErrInvalidViolationType:
		return "The reported violation type is not recognized."

	// ─── Grading ───────────────────────────────────────────────────────
	case ErrNotManuallyGradable:
		return "This answer is not awaiting manual grading."
	case ErrPointsExceedMax:
		return "Awarded points exceed the question's maximum."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}

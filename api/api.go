// Package api defines the JSON bodies exchanged between the desktop client
// and the service.
package api

const (
	PathTranscribe     = "/transcribe"
	PathRegister       = "/auth/register"
	PathLogin          = "/auth/login"
	PathMe             = "/auth/me"
	PathLogout         = "/auth/logout"
	PathLicenseActive  = "/license/activate"
	PathLicenseStatus  = "/license/status"
	PathHealth         = "/health"
	PathMetrics        = "/metrics"
	TranscribeFormFile = "file"
)

// Error codes sent alongside Detail so clients need not parse messages.
const (
	CodeQuotaExceeded  = "quota_exceeded"
	CodeKeyAlreadyUsed = "key_already_used"
	CodeInvalidKey     = "invalid_key"
	CodeEmailTaken     = "email_taken"
	CodeUnauthorized   = "unauthorized"
	CodeBadAudio       = "bad_audio"
)

type Error struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

type TranscribeResponse struct {
	Text              string `json:"text"`
	Words             int    `json:"words"`
	WordsUsedThisWeek int    `json:"words_used_this_week"`
	WordsRemaining    int    `json:"words_remaining"`
	IsPro             bool   `json:"is_pro"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type User struct {
	ID             int64  `json:"id"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	LicenseActive  bool   `json:"license_active"`
	WordsThisWeek  int    `json:"words_used_this_week"`
	WordsRemaining int    `json:"words_remaining"`
	WeekStart      string `json:"week_start"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type ActivateRequest struct {
	LicenseKey string `json:"license_key"`
}

type ActivateResponse struct {
	Message       string `json:"message"`
	LicenseActive bool   `json:"license_active"`
}

type LicenseStatus struct {
	LicenseActive bool   `json:"license_active"`
	LicenseKey    string `json:"license_key,omitempty"`
}

type Health struct {
	Status string `json:"status"`
	Engine string `json:"engine,omitempty"`
}

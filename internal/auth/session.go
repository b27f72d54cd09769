package auth

// SessionData represents the authenticated session context for a request
type SessionData struct {
	UserID    string   `json:"user_id"`
	Email     string   `json:"email"`
	SessionID string   `json:"session_id"`
	Roles     []string `json:"roles,omitempty"`
	IsAdmin   bool     `json:"is_admin"` // Resolved by the admin middleware, false before it runs
}

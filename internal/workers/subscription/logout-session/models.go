// internal/workers/subscription/logout-session/models.go
package logoutsession

type Input struct {
	UserID string `json:"userId"`
	Reason string `json:"reason,omitempty"`
}

type Output struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SessionEnder is the slice of the session manager this worker uses.
type SessionEnder interface {
	Logout(userID string)
}

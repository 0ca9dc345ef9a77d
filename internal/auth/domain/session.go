package domain

import "time"

// SessionContext is the security envelope stored server-side for one
// session. Application data rides along in Data and survives ID
// regeneration; everything else belongs to the session guard.
type SessionContext struct {
	UserID           string            `json:"user_id"`
	UserAgent        string            `json:"user_agent"` // normalized fingerprint half
	IP               string            `json:"ip"`         // fingerprint half, optional enforcement
	Mobile           bool              `json:"mobile"`     // carrier IP rotation expected; skip IP pinning
	CreatedAt        time.Time         `json:"created_at"`
	LastActivity     time.Time         `json:"last_activity"`
	LastRegeneration time.Time         `json:"last_regeneration"`
	CSRFToken        string            `json:"csrf_token,omitempty"` // lazy, rotates only with the session ID
	Data             map[string]string `json:"data,omitempty"`
}

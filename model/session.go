package model

import (
	"time"
)

// Session holds one user's authorization state and pending order
type Session struct {
	ID           string         `json:"id"`
	State        string         `json:"state"` // unauthenticated, awaiting_callback, authenticated
	OAuthState   string         `json:"-"`
	AccessToken  string         `json:"-"`
	TenantID     string         `json:"tenant_id,omitempty"`
	TenantName   string         `json:"tenant_name,omitempty"`
	PendingOrder *PurchaseOrder `json:"pending_order,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Session state constants
const (
	StateUnauthenticated  = "unauthenticated"
	StateAwaitingCallback = "awaiting_callback"
	StateAuthenticated    = "authenticated"
)

// Authenticated reports whether outbound API calls may be made for the session
func (s *Session) Authenticated() bool {
	return s != nil && s.State == StateAuthenticated && s.AccessToken != "" && s.TenantID != ""
}

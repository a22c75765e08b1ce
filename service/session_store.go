package service

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/AnTengye/quotepo/config"
	"github.com/AnTengye/quotepo/model"
)

// SessionStore is an in-memory store for browser sessions.
// Access tokens must not outlive the process, so nothing is persisted.
type SessionStore struct {
	sessions    map[string]*model.Session
	mu          sync.RWMutex
	maxSessions int // Maximum sessions to keep, 0 = unlimited
}

var (
	globalStore *SessionStore
	storeOnce   sync.Once
)

// InitSessionStore initializes the global session store with configuration
func InitSessionStore(cfg *config.StoreConfig) {
	storeOnce.Do(func() {
		globalStore = NewSessionStore(cfg.MaxSessions)
		slog.Info("session store initialized", "max_sessions", globalStore.maxSessions)
	})
}

// GetSessionStore returns the global session store
func GetSessionStore() *SessionStore {
	if globalStore == nil {
		globalStore = NewSessionStore(100)
	}
	return globalStore
}

func NewSessionStore(maxSessions int) *SessionStore {
	if maxSessions < 0 {
		maxSessions = 0
	}
	return &SessionStore{
		sessions:    make(map[string]*model.Session),
		maxSessions: maxSessions,
	}
}

// Get returns a snapshot of the session, or nil if it does not exist
func (s *SessionStore) Get(id string) *model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	snapshot := *sess
	return &snapshot
}

// BeginAuthorization records the anti-forgery state sent to the identity provider
func (s *SessionStore) BeginAuthorization(id, oauthState string) {
	s.update(id, func(sess *model.Session) {
		sess.State = model.StateAwaitingCallback
		sess.OAuthState = oauthState
	})
}

// CompleteAuthorization stores the access token and adopted tenant
func (s *SessionStore) CompleteAuthorization(id, accessToken, tenantID, tenantName string) {
	s.update(id, func(sess *model.Session) {
		sess.State = model.StateAuthenticated
		sess.OAuthState = ""
		sess.AccessToken = accessToken
		sess.TenantID = tenantID
		sess.TenantName = tenantName
	})
}

// ResetAuthorization drops any token and returns the session to
// unauthenticated. Unknown sessions are not created.
func (s *SessionStore) ResetAuthorization(id string) {
	s.modify(id, func(sess *model.Session) {
		sess.State = model.StateUnauthenticated
		sess.OAuthState = ""
		sess.AccessToken = ""
		sess.TenantID = ""
		sess.TenantName = ""
	})
}

// SetPendingOrder replaces the session's pending purchase order
func (s *SessionStore) SetPendingOrder(id string, po *model.PurchaseOrder) {
	s.update(id, func(sess *model.Session) {
		sess.PendingOrder = po
	})
}

func (s *SessionStore) ClearPendingOrder(id string) {
	s.modify(id, func(sess *model.Session) {
		sess.PendingOrder = nil
	})
}

func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Count returns the number of sessions in the store
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionStore) update(id string, fn func(*model.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.upsert(id)
	fn(sess)
	sess.UpdatedAt = time.Now()
}

// modify is update without creating a missing session
func (s *SessionStore) modify(id string, fn func(*model.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	fn(sess)
	sess.UpdatedAt = time.Now()
}

// upsert must be called with lock held
func (s *SessionStore) upsert(id string) *model.Session {
	if sess, ok := s.sessions[id]; ok {
		return sess
	}

	now := time.Now()
	sess := &model.Session{
		ID:        id,
		State:     model.StateUnauthenticated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[id] = sess
	s.cleanupIfNeeded(id)
	return sess
}

// cleanupIfNeeded removes sessions if the store exceeds maxSessions.
// Unauthenticated sessions go first, each group least recently updated
// first. keep is never evicted.
// Must be called with lock held
func (s *SessionStore) cleanupIfNeeded(keep string) {
	if s.maxSessions <= 0 || len(s.sessions) <= s.maxSessions {
		return
	}

	sessions := make([]*model.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if sess.ID != keep {
			sessions = append(sessions, sess)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		ai, aj := sessions[i].Authenticated(), sessions[j].Authenticated()
		if ai != aj {
			return !ai
		}
		return sessions[i].UpdatedAt.Before(sessions[j].UpdatedAt)
	})

	removeCount := len(s.sessions) - s.maxSessions
	for i := 0; i < removeCount && i < len(sessions); i++ {
		slog.Info("evicting idle session",
			"session_id", sessions[i].ID,
			"authenticated", sessions[i].Authenticated(),
			"updated_at", sessions[i].UpdatedAt,
		)
		delete(s.sessions, sessions[i].ID)
	}
}

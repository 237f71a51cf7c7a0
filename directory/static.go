package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hotelcast/tokenauth/principal"
)

// Static is an in-memory directory.
type Static struct {
	mu      sync.RWMutex
	byID    map[int64]User
	byEmail map[string]int64
}

func NewStatic() *Static {
	return &Static{
		byID:    make(map[int64]User),
		byEmail: make(map[string]int64),
	}
}

// Add stores u, replacing any user with the same ID. The email is matched
// case-insensitively.
func (s *Static) Add(u User) error {
	if _, err := u.Principal(); err != nil {
		return err
	}
	email := normalizeEmail(u.Email)
	if email == "" {
		return fmt.Errorf("user %d: email required", u.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byEmail[email]; ok && id != u.ID {
		return fmt.Errorf("email %q already belongs to user %d", email, id)
	}
	if prev, ok := s.byID[u.ID]; ok {
		delete(s.byEmail, normalizeEmail(prev.Email))
	}
	u.Hotels = append([]principal.HotelAccess(nil), u.Hotels...)
	s.byID[u.ID] = u
	s.byEmail[email] = u.ID
	return nil
}

// SetActive flips the active flag of a stored user.
func (s *Static) SetActive(userID int64, active bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return false
	}
	u.Active = active
	s.byID[userID] = u
	return true
}

func (s *Static) Authenticate(ctx context.Context, email, password string) (principal.Principal, error) {
	s.mu.RLock()
	id, ok := s.byEmail[normalizeEmail(email)]
	u := s.byID[id]
	s.mu.RUnlock()

	return authenticate(u, ok, password)
}

func (s *Static) Lookup(ctx context.Context, userID int64) (principal.Principal, error) {
	s.mu.RLock()
	u, ok := s.byID[userID]
	s.mu.RUnlock()

	if !ok || !u.Active {
		return principal.Principal{}, ErrNotFound
	}
	return u.Principal()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

package storage

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"kinobot/internal/models"
)

// ErrUserNotFound is returned by user mutations for unknown IDs.
var ErrUserNotFound = fmt.Errorf("user not found")

// UpsertUser registers or re-registers a user. Favorites and random
// history of an existing record are preserved; name, phone and curator
// status are replaced.
func (s *Store) UpsertUser(id int64, name, phone string, isCurator bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := &models.User{
		Name:          name,
		Phone:         NormalizePhone(phone),
		IsCurator:     isCurator,
		Favorites:     []string{},
		RandomHistory: []string{},
	}
	if existing, ok := s.users[id]; ok {
		u.Favorites = existing.Favorites
		u.RandomHistory = existing.RandomHistory
	}
	s.users[id] = u
	s.saveUsers()

	s.logger.Info("User registered",
		zap.Int64("user_id", id),
		zap.Bool("curator", isCurator))
}

// GetUser returns a copy of the record for id.
func (s *Store) GetUser(id int64) (*models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, false
	}
	return cloneUser(u), true
}

// IsCurator reports whether id is a registered curator.
func (s *Store) IsCurator(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	return ok && u.IsCurator
}

// Users returns a copied snapshot of all registered users.
func (s *Store) Users() map[int64]*models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int64]*models.User, len(s.users))
	for id, u := range s.users {
		out[id] = cloneUser(u)
	}
	return out
}

// ToggleFavorite flips code in the user's favorites and returns whether it
// is now present.
func (s *Store) ToggleFavorite(id int64, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return false, ErrUserNotFound
	}

	for i, c := range u.Favorites {
		if c == code {
			u.Favorites = append(u.Favorites[:i], u.Favorites[i+1:]...)
			s.saveUsers()
			return false, nil
		}
	}
	u.Favorites = append(u.Favorites, code)
	s.saveUsers()
	return true, nil
}

// Favorites returns the user's favorite codes in stable insertion order.
func (s *Store) Favorites(id int64) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil
	}
	return append([]string{}, u.Favorites...)
}

// RandomHistory returns the user's recently shown codes, most recent last.
func (s *Store) RandomHistory(id int64) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil
	}
	return append([]string{}, u.RandomHistory...)
}

// PushRandomHistory appends code to the user's history, moving it to the
// end if already present and trimming to the history limit.
func (s *Store) PushRandomHistory(id int64, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return
	}

	for i, c := range u.RandomHistory {
		if c == code {
			u.RandomHistory = append(u.RandomHistory[:i], u.RandomHistory[i+1:]...)
			break
		}
	}
	u.RandomHistory = append(u.RandomHistory, code)
	if n := len(u.RandomHistory); n > models.RandomHistoryLimit {
		u.RandomHistory = u.RandomHistory[n-models.RandomHistoryLimit:]
	}
	s.saveUsers()
}

// ClearRandomHistory resets the user's recently shown list.
func (s *Store) ClearRandomHistory(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return
	}
	u.RandomHistory = []string{}
	s.saveUsers()
}

// NormalizePhone canonicalizes a phone number for allow-list matching:
// separators stripped, international 00 prefix folded to +, bare digit
// strings get a + prefix.
func NormalizePhone(phone string) string {
	t := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(phone))
	if strings.HasPrefix(t, "00") {
		t = "+" + t[2:]
	}
	if t != "" && !strings.HasPrefix(t, "+") && isDigits(t) {
		t = "+" + t
	}
	return t
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

package storage

import (
	"fmt"

	"go.uber.org/zap"

	"kinobot/internal/models"
)

// ErrMovieNotFound is returned by movie mutations for unknown codes.
var ErrMovieNotFound = fmt.Errorf("movie not found")

// CreateMovie registers a new movie under code. Codes are never reused, so
// an existing code is an error rather than an overwrite. The record is
// normalized to the full stats shape before it is stored.
func (s *Store) CreateMovie(code string, movie *models.Movie) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.movies[code]; ok {
		return fmt.Errorf("code %q already registered", code)
	}

	m := cloneMovie(movie)
	upgradeMovies(map[string]*models.Movie{code: m})
	s.movies[code] = m
	s.saveMovies()

	s.logger.Info("Movie registered",
		zap.String("code", code),
		zap.String("name", m.Name),
		zap.Int("full_message_id", m.FullMessageID))
	return nil
}

// GetMovie returns a copy of the record for code. Mutating the copy has no
// effect on the registry; all writes go through Store methods.
func (s *Store) GetMovie(code string) (*models.Movie, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.movies[code]
	if !ok {
		return nil, false
	}
	return cloneMovie(m), true
}

// HasMovie reports whether code is registered.
func (s *Store) HasMovie(code string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.movies[code]
	return ok
}

// Movies returns a copied snapshot of the whole catalog. The snapshot may
// be stale by one concurrent mutation, which is fine for the advisory
// cross-key reads (ranking, random pools) that use it.
func (s *Store) Movies() map[string]*models.Movie {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*models.Movie, len(s.movies))
	for code, m := range s.movies {
		out[code] = cloneMovie(m)
	}
	return out
}

// SetPreviewMessageID records the teaser message for code.
func (s *Store) SetPreviewMessageID(code string, messageID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.movies[code]
	if !ok {
		return ErrMovieNotFound
	}
	m.PreviewMessageID = messageID
	s.saveMovies()
	return nil
}

// MarkBroken sets the sticky broken flag. Unknown codes are ignored.
func (s *Store) MarkBroken(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.movies[code]
	if !ok || m.Broken {
		return
	}
	m.Broken = true
	s.saveMovies()
	s.logger.Warn("Movie marked broken", zap.String("code", code))
}

// IncrementView counts one successful retrieval.
func (s *Store) IncrementView(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.movies[code]
	if !ok {
		return ErrMovieNotFound
	}
	m.Stats.Views++
	s.saveMovies()
	return nil
}

// Rate stores userID's rating for code, clamped to [1,5]. Sum and count
// are adjusted in the same mutation so they always agree with the map: a
// first rating grows both, a changed rating shifts the sum by the delta,
// a repeated identical rating is a no-op on the aggregate.
func (s *Store) Rate(code string, userID int64, value int) error {
	if value < 1 {
		value = 1
	} else if value > 5 {
		value = 5
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.movies[code]
	if !ok {
		return ErrMovieNotFound
	}

	ratings := m.Stats.Ratings
	if old, ok := ratings.Users[userID]; ok {
		ratings.Sum += value - old
	} else {
		ratings.Sum += value
		ratings.Count++
	}
	ratings.Users[userID] = value
	s.saveMovies()
	return nil
}

// UserRating returns userID's rating for code, 0 if absent.
func (s *Store) UserRating(code string, userID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.movies[code]
	if !ok {
		return 0
	}
	return m.Stats.Ratings.Users[userID]
}

// ToggleLike flips userID's like for code and returns whether the like is
// now present. The like control is gone from the UI; this survives for
// legacy callbacks and the ranking tiebreak.
func (s *Store) ToggleLike(code string, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.movies[code]
	if !ok {
		return false, ErrMovieNotFound
	}

	likes := m.Stats.Likes
	for i, id := range likes.Users {
		if id == userID {
			likes.Users = append(likes.Users[:i], likes.Users[i+1:]...)
			likes.Count = len(likes.Users)
			s.saveMovies()
			return false, nil
		}
	}
	likes.Users = append(likes.Users, userID)
	likes.Count = len(likes.Users)
	s.saveMovies()
	return true, nil
}

// TotalViews sums view counters across the catalog.
func (s *Store) TotalViews() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, m := range s.movies {
		total += m.Stats.Views
	}
	return total
}

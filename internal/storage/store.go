// Package storage implements the persistent movie/user registry. State
// lives in two JSON snapshot files, one per entity type, rewritten
// wholesale after every mutation. All access goes through the Store API,
// which guards the in-memory maps with one coarse lock; the write rate of
// a chat-driven workload is far too low for anything finer to pay off.
package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"kinobot/internal/models"
)

const (
	moviesFile = "movies.json"
	usersFile  = "users.json"

	// Snapshot replace can transiently fail when the destination is held
	// open elsewhere (Windows file locks); retry briefly, then degrade to
	// an in-place overwrite rather than losing the snapshot.
	replaceAttempts = 5
	replaceBackoff  = 250 * time.Millisecond
)

// Store owns the registry state and its on-disk snapshots.
type Store struct {
	mu         sync.RWMutex
	moviesPath string
	usersPath  string
	movies     map[string]*models.Movie
	users      map[int64]*models.User
	logger     *zap.Logger
}

// NewStore creates a store backed by snapshot files under dataDir. Call
// Load before use.
func NewStore(dataDir string, logger *zap.Logger) *Store {
	return &Store{
		moviesPath: filepath.Join(dataDir, moviesFile),
		usersPath:  filepath.Join(dataDir, usersFile),
		movies:     map[string]*models.Movie{},
		users:      map[int64]*models.User{},
		logger:     logger,
	}
}

// Load reconstructs the in-memory maps from disk. A missing file yields an
// empty map; a malformed file is logged and treated as empty, never
// surfaced to callers. Legacy records are upgraded to the current shape
// and, if anything changed, the upgraded snapshot is written back once.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.movies = map[string]*models.Movie{}
	if err := s.loadSnapshot(s.moviesPath, &s.movies); err != nil {
		s.logger.Error("Failed to load movies snapshot, starting empty",
			zap.String("path", s.moviesPath), zap.Error(err))
		s.movies = map[string]*models.Movie{}
	}

	s.users = map[int64]*models.User{}
	if err := s.loadSnapshot(s.usersPath, &s.users); err != nil {
		s.logger.Error("Failed to load users snapshot, starting empty",
			zap.String("path", s.usersPath), zap.Error(err))
		s.users = map[int64]*models.User{}
	}

	if upgradeMovies(s.movies) {
		s.logger.Info("Upgraded legacy movie records", zap.Int("count", len(s.movies)))
		s.saveMovies()
	}
	if upgradeUsers(s.users) {
		s.logger.Info("Upgraded legacy user records", zap.Int("count", len(s.users)))
		s.saveUsers()
	}

	s.logger.Info("Registry loaded",
		zap.Int("movies", len(s.movies)),
		zap.Int("users", len(s.users)))
	return nil
}

func (s *Store) loadSnapshot(path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, dst)
}

// upgradeMovies backfills fields older snapshot generations did not have
// (stats block, broken flag, attribute defaults). Returns true when any
// record changed.
func upgradeMovies(movies map[string]*models.Movie) bool {
	changed := false
	for _, m := range movies {
		if m.Stats == nil {
			m.Stats = models.NewMovieStats()
			changed = true
		}
		if m.Stats.Likes == nil {
			m.Stats.Likes = &models.LikeStats{Users: []int64{}}
			changed = true
		}
		if m.Stats.Likes.Users == nil {
			m.Stats.Likes.Users = []int64{}
			changed = true
		}
		if m.Stats.Ratings == nil {
			m.Stats.Ratings = &models.RatingStats{Users: map[int64]int{}}
			changed = true
		}
		if m.Stats.Ratings.Users == nil {
			m.Stats.Ratings.Users = map[int64]int{}
			changed = true
		}
		for _, attr := range []*string{&m.Name, &m.Year, &m.Genre, &m.Country, &m.IMDB, &m.Quality, &m.Language, &m.Duration} {
			if *attr == "" {
				*attr = "-"
				changed = true
			}
		}
	}
	return changed
}

// upgradeUsers backfills the favorites and random-history fields added
// after the first snapshot generation.
func upgradeUsers(users map[int64]*models.User) bool {
	changed := false
	for _, u := range users {
		if u.Favorites == nil {
			u.Favorites = []string{}
			changed = true
		}
		if u.RandomHistory == nil {
			u.RandomHistory = []string{}
			changed = true
		}
	}
	return changed
}

// saveMovies and saveUsers persist the full map. Callers hold s.mu.
func (s *Store) saveMovies() {
	s.writeSnapshot(s.moviesPath, s.movies)
}

func (s *Store) saveUsers() {
	s.writeSnapshot(s.usersPath, s.users)
}

// writeSnapshot serializes v to a temporary file and atomically replaces
// the canonical path, so a concurrent reader or a crash never observes a
// partial file. If the replace keeps failing the canonical file is
// overwritten in place: degraded durability, not data loss. Persistence
// failures are logged and never propagated; in-memory state stays
// authoritative for the rest of the process lifetime.
func (s *Store) writeSnapshot(path string, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.logger.Error("Failed to serialize snapshot", zap.String("path", path), zap.Error(err))
		return
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.logger.Error("Failed to write temp snapshot", zap.String("path", tmp), zap.Error(err))
		return
	}

	for attempt := 1; attempt <= replaceAttempts; attempt++ {
		if err := os.Rename(tmp, path); err == nil {
			return
		} else if attempt < replaceAttempts {
			s.logger.Warn("Snapshot replace failed, retrying",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Error(err))
			time.Sleep(replaceBackoff)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.logger.Error("Fallback in-place snapshot write failed, temp file kept",
			zap.String("path", path),
			zap.String("temp", tmp),
			zap.Error(err))
		return
	}
	if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("Failed to remove temp snapshot", zap.String("temp", tmp), zap.Error(err))
	}
}

// MovieCount returns the number of registered movies.
func (s *Store) MovieCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.movies)
}

// UserCount returns the number of registered users.
func (s *Store) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func cloneMovie(m *models.Movie) *models.Movie {
	c := *m
	if m.Stats != nil {
		stats := *m.Stats
		if m.Stats.Likes != nil {
			likes := *m.Stats.Likes
			likes.Users = append([]int64{}, m.Stats.Likes.Users...)
			stats.Likes = &likes
		}
		if m.Stats.Ratings != nil {
			ratings := *m.Stats.Ratings
			ratings.Users = make(map[int64]int, len(m.Stats.Ratings.Users))
			for k, v := range m.Stats.Ratings.Users {
				ratings.Users[k] = v
			}
			stats.Ratings = &ratings
		}
		c.Stats = &stats
	}
	return &c
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Favorites = append([]string{}, u.Favorites...)
	c.RandomHistory = append([]string{}, u.RandomHistory...)
	return &c
}

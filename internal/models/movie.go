package models

import "math"

// Movie is one published catalog entry. Records are keyed by their short
// numeric code in the registry; the code itself is not stored inside the
// record. Descriptive attributes default to "-" and are immutable after
// publishing.
type Movie struct {
	Name     string `json:"name"`
	Year     string `json:"year"`
	Genre    string `json:"genre"`
	Country  string `json:"country"`
	IMDB     string `json:"imdb"`
	Quality  string `json:"quality"`
	Language string `json:"language"`
	Duration string `json:"duration"`

	// FullMessageID points at the canonical copy in the full channel,
	// PreviewMessageID at the teaser in the preview channel. Zero means
	// absent: a movie without FullMessageID is not retrievable, a movie
	// without PreviewMessageID simply has no teaser yet.
	FullMessageID    int `json:"full_message_id"`
	PreviewMessageID int `json:"preview_message_id"`

	// Broken is set when delivery failed irrecoverably. It is sticky and
	// excludes the movie from random recommendation pools; exact-code
	// lookup still serves the record so it can be inspected.
	Broken bool `json:"broken"`

	Stats *MovieStats `json:"stats"`
}

// Retrievable reports whether the canonical copy can be delivered. A broken
// record stays retrievable; only the random pool skips it.
func (m *Movie) Retrievable() bool {
	return m.FullMessageID != 0
}

// MovieStats aggregates per-movie engagement.
type MovieStats struct {
	Views   int          `json:"views"`
	Likes   *LikeStats   `json:"likes"`
	Ratings *RatingStats `json:"ratings"`
}

// NewMovieStats returns a fully shaped zero-valued stats block.
func NewMovieStats() *MovieStats {
	return &MovieStats{
		Likes:   &LikeStats{Users: []int64{}},
		Ratings: &RatingStats{Users: map[int64]int{}},
	}
}

// LikeStats keeps the like set. The like button was removed from the UI in
// the current revision; the data stays because the top ranking still reads
// the count and legacy snapshots carry it.
type LikeStats struct {
	Users []int64 `json:"users"`
	Count int     `json:"count"`
}

// RatingStats keeps one rating in [1,5] per user plus a running sum and
// count, so the average never requires summing the map.
type RatingStats struct {
	Users map[int64]int `json:"users"`
	Sum   int           `json:"sum"`
	Count int           `json:"count"`
}

// Average is the mean rating rounded to the nearest integer, 0 when nobody
// has rated yet.
func (r *RatingStats) Average() int {
	if r == nil || r.Count == 0 {
		return 0
	}
	return int(math.Round(float64(r.Sum) / float64(r.Count)))
}

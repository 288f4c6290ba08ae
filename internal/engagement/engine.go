// Package engagement implements the advisory read paths over the registry:
// the top ranking and the anti-repeat random recommendation.
package engagement

import (
	"context"
	"errors"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"kinobot/internal/storage"
	"kinobot/internal/telegram"
)

var (
	// ErrNoCandidates means no movie is currently eligible for random
	// recommendation.
	ErrNoCandidates = errors.New("no candidates for random pick")
	// ErrDeliveryFailed means every eligible candidate failed to deliver.
	ErrDeliveryFailed = errors.New("all random candidates failed to deliver")
)

// RankedMovie is one row of the top list.
type RankedMovie struct {
	Code   string
	Name   string
	Rating int
	Likes  int
	Views  int
}

// Engine ranks the catalog and picks random recommendations. Rankings
// operate on a registry snapshot that may be stale by one concurrent
// mutation; they are advisory, not transactional.
type Engine struct {
	store          *storage.Store
	transport      telegram.Transport
	fullChannel    telegram.ChatRef
	previewChannel telegram.ChatRef
	logger         *zap.Logger
}

// NewEngine creates the engagement engine.
func NewEngine(store *storage.Store, transport telegram.Transport, fullChannel, previewChannel telegram.ChatRef, logger *zap.Logger) *Engine {
	return &Engine{
		store:          store,
		transport:      transport,
		fullChannel:    fullChannel,
		previewChannel: previewChannel,
		logger:         logger,
	}
}

// Top returns up to n movies ordered by average rating, then like count,
// then views, all descending. Ties keep their relative snapshot order;
// they are rare at this catalog size.
func (e *Engine) Top(n int) []RankedMovie {
	movies := e.store.Movies()
	items := make([]RankedMovie, 0, len(movies))
	for code, m := range movies {
		items = append(items, RankedMovie{
			Code:   code,
			Name:   m.Name,
			Rating: m.Stats.Ratings.Average(),
			Likes:  m.Stats.Likes.Count,
			Views:  m.Stats.Views,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Rating != items[j].Rating {
			return items[i].Rating > items[j].Rating
		}
		if items[i].Likes != items[j].Likes {
			return items[i].Likes > items[j].Likes
		}
		return items[i].Views > items[j].Views
	})

	if len(items) > n {
		items = items[:n]
	}
	return items
}

// PickRandom delivers one random movie to the user's chat and returns its
// code. Candidates are non-broken movies with at least one channel copy.
// History is a soft preference: codes the user has recently seen are
// avoided, but when the whole pool is already in the history it is used
// anyway rather than returning nothing. Candidates whose delivery fails
// are marked broken and skipped; a view is only counted on success.
func (e *Engine) PickRandom(ctx context.Context, userID int64, chat telegram.ChatRef) (string, error) {
	movies := e.store.Movies()

	candidates := make([]string, 0, len(movies))
	for code, m := range movies {
		if m.Broken {
			continue
		}
		if m.FullMessageID == 0 && m.PreviewMessageID == 0 {
			continue
		}
		candidates = append(candidates, code)
	}
	if len(candidates) == 0 {
		return "", ErrNoCandidates
	}

	history := e.store.RandomHistory(userID)
	seen := make(map[string]bool, len(history))
	for _, c := range history {
		seen[c] = true
	}

	pool := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if !seen[c] {
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		pool = candidates
	}

	// Avoid an immediate back-to-back repeat, unless it is the only
	// candidate left.
	if len(pool) > 1 && len(history) > 0 {
		last := history[len(history)-1]
		filtered := pool[:0]
		for _, c := range pool {
			if c != last {
				filtered = append(filtered, c)
			}
		}
		pool = filtered
	}

	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	for _, code := range pool {
		m := movies[code]

		attempts := make([]delivery, 0, 2)
		if m.FullMessageID != 0 {
			attempts = append(attempts, delivery{e.fullChannel, m.FullMessageID})
		}
		if m.PreviewMessageID != 0 {
			attempts = append(attempts, delivery{e.previewChannel, m.PreviewMessageID})
		}

		delivered := false
		for _, d := range attempts {
			if _, err := e.transport.DeliverCopy(ctx, chat, d.channel, d.messageID); err != nil {
				e.logger.Error("Random delivery attempt failed",
					zap.String("code", code),
					zap.Int("message_id", d.messageID),
					zap.Error(err))
				continue
			}
			delivered = true
			break
		}

		if !delivered {
			e.store.MarkBroken(code)
			continue
		}

		if err := e.store.IncrementView(code); err != nil {
			e.logger.Error("Failed to count view", zap.String("code", code), zap.Error(err))
		}
		e.store.PushRandomHistory(userID, code)
		return code, nil
	}

	return "", ErrDeliveryFailed
}

type delivery struct {
	channel   telegram.ChatRef
	messageID int
}

// Package retrieval resolves a numeric code into a private delivery of the
// published movie, together with its engagement statistics.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"kinobot/internal/caption"
	"kinobot/internal/storage"
	"kinobot/internal/telegram"
)

// Lookup failures, in the order they are checked.
var (
	ErrNotRegistered  = errors.New("user is not registered")
	ErrCuratorLookup  = errors.New("curator identities cannot request movies")
	ErrNotSubscribed  = errors.New("user is not subscribed to the preview channel")
	ErrNotFound       = errors.New("no movie with this code")
	ErrUnavailable    = errors.New("movie has no published message")
	ErrDeliveryFailed = errors.New("movie delivery failed")
)

var codePattern = regexp.MustCompile(`^[0-9]{2,3}$`)

// IsCode reports whether the trimmed text looks like a movie code.
func IsCode(text string) bool {
	return codePattern.MatchString(strings.TrimSpace(text))
}

// Handler serves movie lookups for registered viewers.
type Handler struct {
	store       *storage.Store
	transport   telegram.Transport
	render      caption.Renderer
	fullChannel telegram.ChatRef
	previewChan telegram.ChatRef
	logger      *zap.Logger
}

// NewHandler creates the retrieval handler.
func NewHandler(store *storage.Store, transport telegram.Transport, render caption.Renderer, fullChannel, previewChannel telegram.ChatRef, logger *zap.Logger) *Handler {
	return &Handler{
		store:       store,
		transport:   transport,
		render:      render,
		fullChannel: fullChannel,
		previewChan: previewChannel,
		logger:      logger,
	}
}

// Retrieve copies the movie behind code into chat and follows up with the
// stats caption. Checks run in a fixed order so the caller always gets the
// most actionable refusal. The view counter moves only after the copy
// lands.
func (h *Handler) Retrieve(ctx context.Context, userID int64, chat telegram.ChatRef, code string, kb telegram.Keyboard) error {
	code = strings.TrimSpace(code)

	if _, ok := h.store.GetUser(userID); !ok {
		return ErrNotRegistered
	}
	if h.store.IsCurator(userID) {
		return ErrCuratorLookup
	}
	subscribed, err := h.transport.CheckMembership(ctx, h.previewChan, userID)
	if err != nil {
		h.logger.Warn("Subscription check failed", zap.Int64("user_id", userID), zap.Error(err))
		return ErrNotSubscribed
	}
	if !subscribed {
		return ErrNotSubscribed
	}

	movie, ok := h.store.GetMovie(code)
	if !ok {
		return ErrNotFound
	}
	if !movie.Retrievable() {
		return ErrUnavailable
	}

	sentID, err := h.transport.DeliverCopy(ctx, chat, h.fullChannel, movie.FullMessageID)
	if err != nil {
		h.logger.Error("Movie delivery failed",
			zap.String("code", code),
			zap.Int64("user_id", userID),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	if err := h.store.IncrementView(code); err != nil {
		h.logger.Warn("View count update failed", zap.String("code", code), zap.Error(err))
	}

	// Re-read so the caption reflects the view that was just counted.
	movie, _ = h.store.GetMovie(code)
	if movie == nil {
		return nil
	}

	combined := h.render.Combined(movie, code, h.store.UserRating(code, userID))
	if err := h.transport.EditCaption(ctx, chat, sentID, combined, kb); err != nil {
		if errors.Is(err, telegram.ErrNotModified) {
			return nil
		}
		// A copy whose media cannot carry a caption rejects the edit;
		// fall back to a standalone stats message.
		stats := h.render.Stats(movie, h.store.UserRating(code, userID))
		if _, sendErr := h.transport.SendMessage(ctx, chat, stats, kb); sendErr != nil {
			h.logger.Warn("Stats message failed",
				zap.String("code", code),
				zap.Int64("user_id", userID),
				zap.Error(sendErr))
		}
	}
	return nil
}

// Package workflow implements the curator ingestion state machine. One
// session exists per curator identity; states advance in strict order from
// asset intake through attribute collection to publishing and the preview
// attachment. A movie record is created atomically at the end of
// publishing, never from a partially collected draft.
package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"kinobot/internal/caption"
	"kinobot/internal/models"
	"kinobot/internal/storage"
	"kinobot/internal/telegram"
)

// State identifies one step of the ingestion workflow.
type State int

const (
	StateIdle State = iota
	StateAwaitingAsset
	StateAwaitingName
	StateAwaitingYear
	StateAwaitingGenre
	StateAwaitingCountry
	StateAwaitingRating
	StateAwaitingQuality
	StateAwaitingLanguage
	StateAwaitingDuration
	StateAwaitingPreview
)

// Curator-facing prompts.
const (
	PromptAsset         = "Iltimos video yoki video-hujjat yuboring."
	PromptName          = "Kino nomini kiriting:"
	PromptYear          = "Yilini kiriting (masalan, 2024):"
	PromptGenre         = "Janrni kiriting (masalan, Drama):"
	PromptCountry       = "Davlati (masalan, AQSH):"
	PromptRating        = "IMBD (masalan, 7/10):"
	PromptQuality       = "Sifat (masalan, 720P):"
	PromptLanguage      = "Tili (masalan, Uzbekcha):"
	PromptDuration      = "Davomiylik (masalan, 1h50m):"
	PromptPreview       = "Asosiy kanal (preview) uchun rasm yoki qisqa video yuboring:"
	PromptFinishPreview = "Avval preview (rasm yoki qisqa video) yuboring."
	PromptVideoOnly     = "Faqat video yuboring (mp4/mkv/avi/mov)."
	PromptPreviewTypes  = "Iltimos, preview uchun rasm, video, video note yoki GIF yuboring."
	MsgPreviewDone      = "Preview kanalga joylandi!"
	MsgPreviewFailed    = "Preview kanalga yuborishda xato. Botni preview kanalga admin qilganingizni va fayl formatini tekshirib qayta urinib ko'ring."
	MsgPublishFailed    = "Kanalga joylashda xatolik. Davomiylikni qayta yuborib ko'ring."
	MsgCodesExhausted   = "Bo'sh kod qolmadi, kino joylab bo'lmaydi."
)

type draft struct {
	asset    telegram.Asset
	name     string
	year     string
	genre    string
	country  string
	imdb     string
	quality  string
	language string
	duration string
	code     string
}

type session struct {
	mu    sync.Mutex
	state State
	draft draft
}

// Manager runs one ingestion session per curator.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*session

	store        *storage.Store
	transport    telegram.Transport
	render       caption.Renderer
	fullChannel  telegram.ChatRef
	previewChan  telegram.ChatRef
	downloadsDir string
	logger       *zap.Logger
}

// NewManager creates the workflow manager.
func NewManager(store *storage.Store, transport telegram.Transport, render caption.Renderer, fullChannel, previewChannel telegram.ChatRef, downloadsDir string, logger *zap.Logger) *Manager {
	return &Manager{
		sessions:     map[int64]*session{},
		store:        store,
		transport:    transport,
		render:       render,
		fullChannel:  fullChannel,
		previewChan:  previewChannel,
		downloadsDir: downloadsDir,
		logger:       logger,
	}
}

func (m *Manager) session(curatorID int64) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[curatorID]
	if !ok {
		s = &session{}
		m.sessions[curatorID] = s
	}
	return s
}

// State returns the curator's current workflow state.
func (m *Manager) State(curatorID int64) State {
	s := m.session(curatorID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Begin starts a new upload. A curator with an unfinished preview must
// complete it first; two interleaved uploads would clobber the shared
// draft.
func (m *Manager) Begin(curatorID int64) string {
	s := m.session(curatorID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateAwaitingPreview {
		return PromptFinishPreview
	}
	s.state = StateAwaitingAsset
	s.draft = draft{}
	return PromptAsset
}

// Cancel abandons the current upload, except during the preview step, which
// survives unrelated commands.
func (m *Manager) Cancel(curatorID int64) {
	s := m.session(curatorID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateAwaitingPreview {
		return
	}
	s.state = StateIdle
	s.draft = draft{}
}

// HandleAsset routes a media message from the curator. The returned bool
// reports whether the workflow consumed the input; primary-asset input
// during attribute collection is treated as stale and ignored.
func (m *Manager) HandleAsset(ctx context.Context, curatorID int64, asset telegram.Asset) (string, bool) {
	s := m.session(curatorID)
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateAwaitingPreview:
		return m.attachPreview(ctx, curatorID, s, asset), true
	case StateIdle, StateAwaitingAsset:
		if !asset.IsVideo() {
			if s.state == StateAwaitingAsset {
				return PromptVideoOnly, true
			}
			return "", false
		}
		s.draft = draft{asset: asset}
		s.state = StateAwaitingName
		return PromptName, true
	default:
		return "", false
	}
}

// HandleText routes a free-text reply. Attribute states consume the text,
// trim it, and advance; an empty name reprompts without advancing. The
// duration reply triggers publishing.
func (m *Manager) HandleText(ctx context.Context, curatorID int64, text string) (string, bool) {
	s := m.session(curatorID)
	s.mu.Lock()
	defer s.mu.Unlock()

	trimmed := strings.TrimSpace(text)
	switch s.state {
	case StateAwaitingName:
		if trimmed == "" {
			return PromptName, true
		}
		s.draft.name = trimmed
		s.state = StateAwaitingYear
		return PromptYear, true
	case StateAwaitingYear:
		s.draft.year = trimmed
		s.state = StateAwaitingGenre
		return PromptGenre, true
	case StateAwaitingGenre:
		s.draft.genre = trimmed
		s.state = StateAwaitingCountry
		return PromptCountry, true
	case StateAwaitingCountry:
		s.draft.country = trimmed
		s.state = StateAwaitingRating
		return PromptRating, true
	case StateAwaitingRating:
		s.draft.imdb = trimmed
		s.state = StateAwaitingQuality
		return PromptQuality, true
	case StateAwaitingQuality:
		s.draft.quality = trimmed
		s.state = StateAwaitingLanguage
		return PromptLanguage, true
	case StateAwaitingLanguage:
		s.draft.language = trimmed
		s.state = StateAwaitingDuration
		return PromptDuration, true
	case StateAwaitingDuration:
		s.draft.duration = trimmed
		return m.publish(ctx, curatorID, s), true
	default:
		return "", false
	}
}

// publish runs the transient publishing step: code allocation, best-effort
// local fetch, channel publish with a by-reference fallback, and the
// atomic record creation. Callers hold s.mu.
func (m *Manager) publish(ctx context.Context, curatorID int64, s *session) string {
	code, err := m.store.AllocateCode()
	if err != nil {
		m.logger.Error("Code allocation failed", zap.Int64("curator_id", curatorID), zap.Error(err))
		s.state = StateIdle
		s.draft = draft{}
		return MsgCodesExhausted
	}

	movie := &models.Movie{
		Name:     s.draft.name,
		Year:     s.draft.year,
		Genre:    s.draft.genre,
		Country:  s.draft.country,
		IMDB:     s.draft.imdb,
		Quality:  s.draft.quality,
		Language: s.draft.language,
		Duration: s.draft.duration,
		Stats:    models.NewMovieStats(),
	}

	// Fetch the asset to local storage when the transport allows it. The
	// Bot API refuses downloads above a size threshold; publishing by
	// file reference still works then, so a fetch failure is only a
	// warning.
	asset := s.draft.asset
	localPath := filepath.Join(m.downloadsDir, safeFilename(movie.Name, asset.Ext()))
	if err := m.transport.FetchAsset(ctx, asset.FileID, localPath); err != nil {
		m.logger.Warn("Asset fetch failed, publishing by file reference",
			zap.String("code", code), zap.Error(err))
	} else {
		asset.LocalPath = localPath
	}

	fullCaption := m.render.Full(movie, code)
	messageID, err := m.transport.Publish(ctx, m.fullChannel, asset, fullCaption)
	if err != nil && asset.LocalPath != "" {
		m.logger.Warn("Publish from local copy failed, retrying by file reference",
			zap.String("code", code), zap.Error(err))
		asset.LocalPath = ""
		messageID, err = m.transport.Publish(ctx, m.fullChannel, asset, fullCaption)
	}

	removeLocal(m.logger, localPath)

	if err != nil {
		m.logger.Error("Publish to full channel failed",
			zap.Int64("curator_id", curatorID),
			zap.String("code", code),
			zap.Error(err))
		// The duration reply retries publishing; stay on that step.
		return MsgPublishFailed
	}

	movie.FullMessageID = messageID
	if err := m.store.CreateMovie(code, movie); err != nil {
		m.logger.Error("Failed to register movie", zap.String("code", code), zap.Error(err))
		return MsgPublishFailed
	}

	s.draft.code = code
	s.state = StateAwaitingPreview
	return PromptPreview
}

// attachPreview publishes the teaser to the preview channel. The movie
// record already exists and stays valid whatever happens here; a publish
// failure leaves the session in the preview step for a manual retry.
// Callers hold s.mu.
func (m *Manager) attachPreview(ctx context.Context, curatorID int64, s *session, asset telegram.Asset) string {
	code := s.draft.code
	movie, ok := m.store.GetMovie(code)
	if !ok {
		// The record vanished underneath the session (manual cleanup);
		// nothing left to attach to.
		m.logger.Error("Preview target missing", zap.String("code", code))
		s.state = StateIdle
		s.draft = draft{}
		return MsgPreviewFailed
	}

	teaser := m.render.Preview(movie, code)

	publish := asset
	switch {
	case asset.Kind == telegram.AssetPhoto,
		asset.Kind == telegram.AssetVideo,
		asset.Kind == telegram.AssetAnimation,
		asset.Kind == telegram.AssetVideoNote:
		// Native media accepted as-is.
	case asset.IsImage():
		publish.Kind = telegram.AssetPhoto
	case asset.IsVideo():
		publish.Kind = telegram.AssetVideo
	default:
		return PromptPreviewTypes
	}

	messageID, err := m.transport.Publish(ctx, m.previewChan, publish, teaser)
	if err != nil && publish.Kind == telegram.AssetVideoNote {
		// Some note files publish fine as a regular video, which also
		// restores the caption.
		publish.Kind = telegram.AssetVideo
		messageID, err = m.transport.Publish(ctx, m.previewChan, publish, teaser)
	}
	if err != nil {
		m.logger.Error("Preview publish failed",
			zap.Int64("curator_id", curatorID),
			zap.String("code", code),
			zap.Error(err))
		return MsgPreviewFailed
	}

	if publish.Kind == telegram.AssetVideoNote {
		// Video notes cannot carry captions; send the teaser text as its
		// own channel message.
		if _, err := m.transport.SendMessage(ctx, m.previewChan, teaser, nil); err != nil {
			m.logger.Warn("Failed to send preview caption", zap.String("code", code), zap.Error(err))
		}
	}

	if err := m.store.SetPreviewMessageID(code, messageID); err != nil {
		m.logger.Error("Failed to record preview message", zap.String("code", code), zap.Error(err))
	}

	s.state = StateIdle
	s.draft = draft{}
	return MsgPreviewDone
}

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9_\- ]+`)

// safeFilename strips everything outside a conservative character set so a
// movie name is usable as a local file name.
func safeFilename(name, ext string) string {
	base := strings.TrimSpace(unsafeFilename.ReplaceAllString(name, ""))
	if base == "" {
		base = "kino"
	}
	return base + "." + ext
}

func removeLocal(logger *zap.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Failed to remove local asset copy", zap.String("path", path), zap.Error(err))
	}
}

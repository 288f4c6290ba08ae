package engagement

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kinobot/internal/models"
	"kinobot/internal/storage"
	"kinobot/internal/telegram"
)

var (
	fullChannel    = telegram.ParseChatRef("@full")
	previewChannel = telegram.ParseChatRef("@preview")
)

// fakeTransport implements telegram.Transport with overridable hooks. Only
// the delivery path matters here; the rest is inert.
type fakeTransport struct {
	deliverCopy func(from telegram.ChatRef, messageID int) (int, error)
	deliveries  []int
}

func (f *fakeTransport) DeliverCopy(_ context.Context, _ telegram.ChatRef, from telegram.ChatRef, messageID int) (int, error) {
	f.deliveries = append(f.deliveries, messageID)
	if f.deliverCopy != nil {
		return f.deliverCopy(from, messageID)
	}
	return 1, nil
}

func (f *fakeTransport) Publish(context.Context, telegram.ChatRef, telegram.Asset, string) (int, error) {
	return 0, errors.New("not implemented")
}
func (f *fakeTransport) SendMessage(context.Context, telegram.ChatRef, string, telegram.Keyboard) (int, error) {
	return 0, errors.New("not implemented")
}
func (f *fakeTransport) EditCaption(context.Context, telegram.ChatRef, int, string, telegram.Keyboard) error {
	return errors.New("not implemented")
}
func (f *fakeTransport) EditText(context.Context, telegram.ChatRef, int, string, telegram.Keyboard) error {
	return errors.New("not implemented")
}
func (f *fakeTransport) EditKeyboard(context.Context, telegram.ChatRef, int, telegram.Keyboard) error {
	return errors.New("not implemented")
}
func (f *fakeTransport) CheckMembership(context.Context, telegram.ChatRef, int64) (bool, error) {
	return true, nil
}
func (f *fakeTransport) MemberCount(context.Context, telegram.ChatRef) (int, error) {
	return 0, errors.New("not implemented")
}
func (f *fakeTransport) FetchAsset(context.Context, string, string) error {
	return errors.New("not implemented")
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s := storage.NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, s.Load())
	return s
}

func addMovie(t *testing.T, s *storage.Store, code, name string, fullID, previewID int) {
	t.Helper()
	require.NoError(t, s.CreateMovie(code, &models.Movie{
		Name:             name,
		FullMessageID:    fullID,
		PreviewMessageID: previewID,
		Stats:            models.NewMovieStats(),
	}))
}

func TestTopOrdering(t *testing.T) {
	s := newTestStore(t)
	tr := &fakeTransport{}
	e := NewEngine(s, tr, fullChannel, previewChannel, zap.NewNop())

	addMovie(t, s, "100", "Low", 1, 0)
	addMovie(t, s, "200", "High", 2, 0)
	addMovie(t, s, "300", "Liked", 3, 0)
	addMovie(t, s, "400", "Viewed", 4, 0)

	require.NoError(t, s.Rate("200", 1, 5))
	require.NoError(t, s.Rate("100", 1, 2))
	// 300 and 400 are unrated; likes then views break that tie.
	_, err := s.ToggleLike("300", 1)
	require.NoError(t, err)
	require.NoError(t, s.IncrementView("400"))

	top := e.Top(10)
	require.Len(t, top, 4)
	assert.Equal(t, "200", top[0].Code)
	assert.Equal(t, "100", top[1].Code)
	assert.Equal(t, "300", top[2].Code)
	assert.Equal(t, "400", top[3].Code)

	assert.Len(t, e.Top(2), 2)
	assert.Empty(t, NewEngine(newTestStore(t), tr, fullChannel, previewChannel, zap.NewNop()).Top(10))
}

func TestPickRandomNoCandidates(t *testing.T) {
	s := newTestStore(t)
	e := NewEngine(s, &fakeTransport{}, fullChannel, previewChannel, zap.NewNop())

	_, err := e.PickRandom(context.Background(), 7, telegram.Chat(1))
	assert.ErrorIs(t, err, ErrNoCandidates)

	// Broken and never-published movies are not candidates either.
	addMovie(t, s, "100", "Broken", 5, 0)
	s.MarkBroken("100")
	addMovie(t, s, "200", "Unpublished", 0, 0)

	_, err = e.PickRandom(context.Background(), 7, telegram.Chat(1))
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestPickRandomCountsViewAndHistory(t *testing.T) {
	s := newTestStore(t)
	s.UpsertUser(7, "Ali", "", false)
	e := NewEngine(s, &fakeTransport{}, fullChannel, previewChannel, zap.NewNop())

	addMovie(t, s, "100", "Only", 5, 0)

	code, err := e.PickRandom(context.Background(), 7, telegram.Chat(1))
	require.NoError(t, err)
	assert.Equal(t, "100", code)

	m, _ := s.GetMovie("100")
	assert.Equal(t, 1, m.Stats.Views)
	assert.Equal(t, []string{"100"}, s.RandomHistory(7))
}

func TestPickRandomAvoidsHistory(t *testing.T) {
	s := newTestStore(t)
	s.UpsertUser(7, "Ali", "", false)
	e := NewEngine(s, &fakeTransport{}, fullChannel, previewChannel, zap.NewNop())

	addMovie(t, s, "100", "Seen", 5, 0)
	addMovie(t, s, "200", "Fresh", 6, 0)
	s.PushRandomHistory(7, "100")

	for i := 0; i < 5; i++ {
		code, err := e.PickRandom(context.Background(), 7, telegram.Chat(1))
		require.NoError(t, err)
		if i == 0 {
			assert.Equal(t, "200", code, "unseen movie wins over history")
		}
	}
}

func TestPickRandomHistoryIsSoft(t *testing.T) {
	s := newTestStore(t)
	s.UpsertUser(7, "Ali", "", false)
	e := NewEngine(s, &fakeTransport{}, fullChannel, previewChannel, zap.NewNop())

	addMovie(t, s, "100", "A", 5, 0)
	addMovie(t, s, "200", "B", 6, 0)
	s.PushRandomHistory(7, "100")
	s.PushRandomHistory(7, "200")

	// Everything is in the history; the pick still succeeds and avoids
	// the immediately previous movie.
	code, err := e.PickRandom(context.Background(), 7, telegram.Chat(1))
	require.NoError(t, err)
	assert.Equal(t, "100", code)
}

func TestPickRandomSingleCandidateMayRepeat(t *testing.T) {
	s := newTestStore(t)
	s.UpsertUser(7, "Ali", "", false)
	e := NewEngine(s, &fakeTransport{}, fullChannel, previewChannel, zap.NewNop())

	addMovie(t, s, "100", "Only", 5, 0)
	s.PushRandomHistory(7, "100")

	code, err := e.PickRandom(context.Background(), 7, telegram.Chat(1))
	require.NoError(t, err)
	assert.Equal(t, "100", code)
}

func TestPickRandomMarksFailedCandidateBroken(t *testing.T) {
	s := newTestStore(t)
	s.UpsertUser(7, "Ali", "", false)

	tr := &fakeTransport{
		deliverCopy: func(_ telegram.ChatRef, messageID int) (int, error) {
			if messageID == 5 {
				return 0, errors.New("message to copy not found")
			}
			return 1, nil
		},
	}
	e := NewEngine(s, tr, fullChannel, previewChannel, zap.NewNop())

	addMovie(t, s, "100", "Gone", 5, 0)
	addMovie(t, s, "200", "Fine", 6, 0)

	for i := 0; i < 2; i++ {
		code, err := e.PickRandom(context.Background(), 7, telegram.Chat(1))
		require.NoError(t, err)
		assert.Equal(t, "200", code)
	}

	m, _ := s.GetMovie("100")
	assert.True(t, m.Broken)
	assert.Equal(t, 0, m.Stats.Views, "failed deliveries count no views")
}

func TestPickRandomFallsBackToPreviewCopy(t *testing.T) {
	s := newTestStore(t)
	s.UpsertUser(7, "Ali", "", false)

	tr := &fakeTransport{
		deliverCopy: func(from telegram.ChatRef, _ int) (int, error) {
			if from == fullChannel {
				return 0, errors.New("chat not found")
			}
			return 1, nil
		},
	}
	e := NewEngine(s, tr, fullChannel, previewChannel, zap.NewNop())

	addMovie(t, s, "100", "Only", 5, 9)

	code, err := e.PickRandom(context.Background(), 7, telegram.Chat(1))
	require.NoError(t, err)
	assert.Equal(t, "100", code)

	m, _ := s.GetMovie("100")
	assert.False(t, m.Broken)
	assert.Equal(t, 1, m.Stats.Views)
}

func TestPickRandomAllDeliveriesFail(t *testing.T) {
	s := newTestStore(t)
	s.UpsertUser(7, "Ali", "", false)

	tr := &fakeTransport{
		deliverCopy: func(telegram.ChatRef, int) (int, error) {
			return 0, errors.New("chat not found")
		},
	}
	e := NewEngine(s, tr, fullChannel, previewChannel, zap.NewNop())

	addMovie(t, s, "100", "A", 5, 0)
	addMovie(t, s, "200", "B", 6, 0)

	_, err := e.PickRandom(context.Background(), 7, telegram.Chat(1))
	assert.ErrorIs(t, err, ErrDeliveryFailed)

	for _, code := range []string{"100", "200"} {
		m, _ := s.GetMovie(code)
		assert.True(t, m.Broken)
	}
}

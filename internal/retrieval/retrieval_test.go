package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kinobot/internal/caption"
	"kinobot/internal/models"
	"kinobot/internal/storage"
	"kinobot/internal/telegram"
)

var (
	fullChannel    = telegram.ParseChatRef("@full")
	previewChannel = telegram.ParseChatRef("@preview")
)

type fakeTransport struct {
	subscribed    bool
	membershipErr error
	deliverErr    error
	editErr       error

	delivered []int
	edits     []string
	messages  []string
}

func (f *fakeTransport) CheckMembership(context.Context, telegram.ChatRef, int64) (bool, error) {
	return f.subscribed, f.membershipErr
}

func (f *fakeTransport) DeliverCopy(_ context.Context, _ telegram.ChatRef, _ telegram.ChatRef, messageID int) (int, error) {
	if f.deliverErr != nil {
		return 0, f.deliverErr
	}
	f.delivered = append(f.delivered, messageID)
	return 555, nil
}

func (f *fakeTransport) EditCaption(_ context.Context, _ telegram.ChatRef, _ int, caption string, _ telegram.Keyboard) error {
	if f.editErr != nil {
		return f.editErr
	}
	f.edits = append(f.edits, caption)
	return nil
}

func (f *fakeTransport) SendMessage(_ context.Context, _ telegram.ChatRef, text string, _ telegram.Keyboard) (int, error) {
	f.messages = append(f.messages, text)
	return 1, nil
}

func (f *fakeTransport) Publish(context.Context, telegram.ChatRef, telegram.Asset, string) (int, error) {
	return 0, errors.New("not implemented")
}
func (f *fakeTransport) EditText(context.Context, telegram.ChatRef, int, string, telegram.Keyboard) error {
	return errors.New("not implemented")
}
func (f *fakeTransport) EditKeyboard(context.Context, telegram.ChatRef, int, telegram.Keyboard) error {
	return errors.New("not implemented")
}
func (f *fakeTransport) MemberCount(context.Context, telegram.ChatRef) (int, error) {
	return 0, errors.New("not implemented")
}
func (f *fakeTransport) FetchAsset(context.Context, string, string) error {
	return errors.New("not implemented")
}

const (
	viewer  = int64(7)
	curator = int64(99)
)

func newFixture(t *testing.T, tr *fakeTransport) (*Handler, *storage.Store) {
	t.Helper()
	s := storage.NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, s.Load())
	s.UpsertUser(viewer, "Ali", "+998901234567", false)
	s.UpsertUser(curator, "Admin", "+998900000000", true)
	require.NoError(t, s.CreateMovie("123", &models.Movie{
		Name:          "Interstellar",
		FullMessageID: 42,
		Stats:         models.NewMovieStats(),
	}))

	h := NewHandler(s, tr, caption.NewHTML("kino_bot", "preview"), fullChannel, previewChannel, zap.NewNop())
	return h, s
}

func TestRetrieveChecks(t *testing.T) {
	tests := []struct {
		name      string
		transport *fakeTransport
		userID    int64
		code      string
		wantErr   error
	}{
		{"unregistered user", &fakeTransport{subscribed: true}, 12345, "123", ErrNotRegistered},
		{"curator identity", &fakeTransport{subscribed: true}, curator, "123", ErrCuratorLookup},
		{"not subscribed", &fakeTransport{subscribed: false}, viewer, "123", ErrNotSubscribed},
		{"membership check error", &fakeTransport{membershipErr: fmt.Errorf("chat not found")}, viewer, "123", ErrNotSubscribed},
		{"unknown code", &fakeTransport{subscribed: true}, viewer, "999", ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newFixture(t, tt.transport)
			err := h.Retrieve(context.Background(), tt.userID, telegram.Chat(1), tt.code, nil)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, tt.transport.delivered)
		})
	}
}

func TestRetrieveUnavailable(t *testing.T) {
	tr := &fakeTransport{subscribed: true}
	h, s := newFixture(t, tr)

	require.NoError(t, s.CreateMovie("55", &models.Movie{Name: "Pending", Stats: models.NewMovieStats()}))
	err := h.Retrieve(context.Background(), viewer, telegram.Chat(1), "55", nil)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Empty(t, tr.delivered)
}

func TestRetrieveServesBrokenRecord(t *testing.T) {
	tr := &fakeTransport{subscribed: true}
	h, s := newFixture(t, tr)

	s.MarkBroken("123")
	err := h.Retrieve(context.Background(), viewer, telegram.Chat(1), "123", nil)
	require.NoError(t, err)
	assert.Equal(t, []int{42}, tr.delivered)

	m, ok := s.GetMovie("123")
	require.True(t, ok)
	assert.Equal(t, 1, m.Stats.Views)
}

func TestRetrieveDeliversAndCountsView(t *testing.T) {
	tr := &fakeTransport{subscribed: true}
	h, s := newFixture(t, tr)

	require.NoError(t, h.Retrieve(context.Background(), viewer, telegram.Chat(1), "123", nil))

	assert.Equal(t, []int{42}, tr.delivered)
	m, _ := s.GetMovie("123")
	assert.Equal(t, 1, m.Stats.Views)

	require.Len(t, tr.edits, 1)
	assert.Contains(t, tr.edits[0], "Ko'rishlar: 1", "caption reflects the counted view")
	assert.Empty(t, tr.messages)
}

func TestRetrieveTrimsCode(t *testing.T) {
	tr := &fakeTransport{subscribed: true}
	h, _ := newFixture(t, tr)

	require.NoError(t, h.Retrieve(context.Background(), viewer, telegram.Chat(1), " 123 ", nil))
	assert.Len(t, tr.delivered, 1)
}

func TestRetrieveDeliveryFailure(t *testing.T) {
	tr := &fakeTransport{subscribed: true, deliverErr: fmt.Errorf("message to copy not found")}
	h, s := newFixture(t, tr)

	err := h.Retrieve(context.Background(), viewer, telegram.Chat(1), "123", nil)
	assert.ErrorIs(t, err, ErrDeliveryFailed)

	m, _ := s.GetMovie("123")
	assert.Equal(t, 0, m.Stats.Views, "failed delivery counts no view")
}

func TestRetrieveStatsFallback(t *testing.T) {
	tr := &fakeTransport{subscribed: true, editErr: telegram.ErrEditUnsupported}
	h, _ := newFixture(t, tr)

	require.NoError(t, h.Retrieve(context.Background(), viewer, telegram.Chat(1), "123", nil))

	require.Len(t, tr.messages, 1)
	assert.Contains(t, tr.messages[0], "Statistika")
}

func TestRetrieveNotModifiedIsFine(t *testing.T) {
	tr := &fakeTransport{subscribed: true, editErr: telegram.ErrNotModified}
	h, _ := newFixture(t, tr)

	require.NoError(t, h.Retrieve(context.Background(), viewer, telegram.Chat(1), "123", nil))
	assert.Empty(t, tr.messages)
}

func TestIsCode(t *testing.T) {
	valid := []string{"10", "99", "100", "999", " 123 ", "007"}
	for _, s := range valid {
		assert.True(t, IsCode(s), s)
	}
	invalid := []string{"", "1", "1000", "12a", "abc", "12 3", "-12"}
	for _, s := range invalid {
		assert.False(t, IsCode(s), s)
	}
}

package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kinobot/internal/engagement"
	"kinobot/internal/models"
	"kinobot/internal/storage"
	"kinobot/internal/telegram"
)

func newTestServer(t *testing.T) (*Server, *storage.Store) {
	t.Helper()
	store := storage.NewStore(t.TempDir(), zap.NewNop())
	require.NoError(t, store.Load())
	engine := engagement.NewEngine(store, nil, telegram.ParseChatRef("@full"), telegram.ParseChatRef("@preview"), zap.NewNop())
	return NewServer(store, engine, zap.NewNop()), store
}

func doGet(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestPing(t *testing.T) {
	s, _ := newTestServer(t)
	w := doGet(t, s, "/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}

func TestStats(t *testing.T) {
	s, store := newTestServer(t)
	require.NoError(t, store.CreateMovie("123", &models.Movie{Name: "A", FullMessageID: 1, Stats: models.NewMovieStats()}))
	store.UpsertUser(7, "Ali", "", false)
	require.NoError(t, store.IncrementView("123"))

	w := doGet(t, s, "/api/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body["movies"])
	assert.Equal(t, 1, body["users"])
	assert.Equal(t, 1, body["total_views"])
}

func TestTop(t *testing.T) {
	s, store := newTestServer(t)
	require.NoError(t, store.CreateMovie("100", &models.Movie{Name: "Low", FullMessageID: 1, Stats: models.NewMovieStats()}))
	require.NoError(t, store.CreateMovie("200", &models.Movie{Name: "High", FullMessageID: 2, Stats: models.NewMovieStats()}))
	require.NoError(t, store.Rate("200", 1, 5))

	w := doGet(t, s, "/api/top?n=1")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Top []struct {
			Code   string `json:"code"`
			Name   string `json:"name"`
			Rating int    `json:"rating"`
		} `json:"top"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Top, 1)
	assert.Equal(t, "200", body.Top[0].Code)
	assert.Equal(t, 5, body.Top[0].Rating)
}

func TestTopRejectsBadN(t *testing.T) {
	s, _ := newTestServer(t)
	for _, q := range []string{"n=0", "n=101", "n=abc"} {
		w := doGet(t, s, "/api/top?"+q)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

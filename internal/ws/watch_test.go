package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dimpoz/backend/internal/store"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWatchStreamsSnapshotThenChanges(t *testing.T) {
	keys, err := store.NewKeyGenerator(1)
	require.NoError(t, err)
	s := store.NewMemoryStore(keys)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "carousel/c1", map[string]string{"title": "First"}))

	srv := httptest.NewServer(http.HandlerFunc(NewWatchHandler(s, zap.NewNop()).Handle))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?path=carousel"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var snap Message
	require.NoError(t, conn.ReadJSON(&snap))
	assert.Equal(t, "snapshot", snap.Type)
	assert.JSONEq(t, `{"title":"First"}`, string(snap.Docs["c1"]))

	require.NoError(t, s.Set(ctx, "carousel/c2", map[string]string{"title": "Second"}))
	require.NoError(t, s.Set(ctx, "movies/m1", map[string]string{"title": "Elsewhere"}))
	require.NoError(t, s.Delete(ctx, "carousel/c1"))

	var put, del Message
	require.NoError(t, conn.ReadJSON(&put))
	assert.Equal(t, store.EventPut, put.Type)
	assert.Equal(t, "carousel/c2", put.Path)
	assert.JSONEq(t, `{"title":"Second"}`, string(put.Data))

	require.NoError(t, conn.ReadJSON(&del))
	assert.Equal(t, store.EventDelete, del.Type)
	assert.Equal(t, "carousel/c1", del.Path)
}

func TestWatchRejectsPrivatePaths(t *testing.T) {
	keys, err := store.NewKeyGenerator(1)
	require.NoError(t, err)
	h := NewWatchHandler(store.NewMemoryStore(keys), zap.NewNop())

	for _, path := range []string{"settlements", "wallet/transactions", "users", ""} {
		rec := httptest.NewRecorder()
		h.Handle(rec, httptest.NewRequest(http.MethodGet, "/ws/watch?path="+path, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

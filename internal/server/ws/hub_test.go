package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veloralabs/liqlock/internal/domain"
)

// fakeBus serves a canned stream backlog and a live Pub/Sub channel.
type fakeBus struct {
	live    chan []byte
	backlog []domain.StreamMessage
}

func (f *fakeBus) Publish(context.Context, string, []byte) error { return nil }

func (f *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return f.live, nil
}

func (f *fakeBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (f *fakeBus) StreamRead(_ context.Context, _ string, lastID string, _ int) ([]domain.StreamMessage, error) {
	var out []domain.StreamMessage
	for _, m := range f.backlog {
		if m.ID > lastID {
			out = append(out, m)
		}
	}
	return out, nil
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHandleWSReplaysStreamBacklog(t *testing.T) {
	bus := &fakeBus{
		live: make(chan []byte),
		backlog: []domain.StreamMessage{
			{ID: "1-0", Payload: []byte(`{"type":"position_locked","claim_id":1}`)},
			{ID: "2-0", Payload: []byte(`{"type":"withdrawal","claim_id":1}`)},
		},
	}
	hub := NewHub(bus, "events", "events:stream", slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?after=1-0"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	hello := readFrame(t, conn)
	assert.Equal(t, "hello", hello["type"])

	// Only the entry after the client's last seen stream ID is replayed.
	replay := readFrame(t, conn)
	assert.Equal(t, "replay", replay["type"])
	assert.Equal(t, "2-0", replay["stream_id"])
	payload, ok := replay["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "withdrawal", payload["type"])

	// Live events still flow after the backlog.
	bus.live <- []byte(`{"type":"underlying_returned","claim_id":1}`)
	liveMsg := readFrame(t, conn)
	assert.Equal(t, "underlying_returned", liveMsg["type"])
}

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

	"github.com/alanyoungcy/chainarb/internal/bus"
	"github.com/alanyoungcy/chainarb/internal/domain"
)

type fakeSignals struct {
	stream     []domain.StreamMessage
	streamRead chan string
}

func (f *fakeSignals) Publish(ctx context.Context, channel string, payload []byte) error {
	return nil
}

func (f *fakeSignals) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (f *fakeSignals) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	return nil
}

func (f *fakeSignals) StreamRead(ctx context.Context, stream, lastID string, count int) ([]domain.StreamMessage, error) {
	if f.streamRead != nil {
		f.streamRead <- stream
	}
	return f.stream, nil
}

func readTextFrame(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, kind)
	return data
}

func TestClientReceivesStatusThenTradeBackfill(t *testing.T) {
	signals := &fakeSignals{
		stream: []domain.StreamMessage{
			{ID: "1-0", Payload: []byte(`{"type":"trade:complete","payload":{"id":"t1"}}`)},
			{ID: "2-0", Payload: []byte(`{"type":"trade:complete","payload":{"id":"t2"}}`)},
		},
		streamRead: make(chan string, 1),
	}
	hub := NewHub(signals, slog.Default(), Config{Mode: "trade"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn, resp, err := websocket.DefaultDialer.Dial(
		"ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	var status struct {
		Type    string `json:"type"`
		Payload struct {
			Mode        string `json:"mode"`
			WsConnected bool   `json:"ws_connected"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(readTextFrame(t, conn), &status))
	assert.Equal(t, "bot_status", status.Type)
	assert.Equal(t, "trade", status.Payload.Mode)
	assert.True(t, status.Payload.WsConnected)

	select {
	case stream := <-signals.streamRead:
		assert.Equal(t, bus.TradeStream, stream)
	case <-time.After(2 * time.Second):
		t.Fatal("backfill never read the trade stream")
	}

	assert.JSONEq(t, string(signals.stream[0].Payload), string(readTextFrame(t, conn)))
	assert.JSONEq(t, string(signals.stream[1].Payload), string(readTextFrame(t, conn)))
}

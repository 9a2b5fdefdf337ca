package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reputation-engine/internal/domain"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(logger)
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, logger, w, r)
	}))
	t.Cleanup(func() {
		srv.Close()
		hub.Stop()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_PointsUpdatedReachesUserChannel(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dial(t, srv, "?user_id=u1")

	require.Eventually(t, func() bool { return hub.GetSubscriberCount("u1") == 1 }, time.Second, 5*time.Millisecond)

	hub.BroadcastPointsUpdated("u1", 42, domain.ScoreReason{UserID: "u1", Reason: "quiz", Amount: 2})

	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypePointsUpdated, msg.Type)
	assert.Equal(t, "u1", msg.UserID)
	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(42), data["total_points"])
}

func TestHub_SubscribeMessageAndBadgeAwarded(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dial(t, srv, "")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeSubscribe, UserID: "u2"}))
	ack := readMessage(t, conn)
	assert.Equal(t, "subscribed", ack.Type)

	require.Eventually(t, func() bool { return hub.GetSubscriberCount("u2") == 1 }, time.Second, 5*time.Millisecond)

	// other users' events are not delivered
	hub.BroadcastPointsUpdated("someone-else", 1, domain.ScoreReason{})
	hub.BroadcastBadgeAwarded("u2", domain.BadgeAward{BadgeID: "b1", AwardedAt: time.Now()}, "Mentor del Mes")

	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeBadgeAwarded, msg.Type)
	data := msg.Data.(map[string]interface{})
	assert.Equal(t, "Mentor del Mes", data["badge_name"])
}

func TestHub_SubscribeRequiresUserID(t *testing.T) {
	_, srv := newTestHub(t)
	conn := dial(t, srv, "")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MessageTypeSubscribe}))
	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeError, msg.Type)
}

func TestHub_UnregisterOnDisconnect(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dial(t, srv, "?user_id=u3")
	require.Eventually(t, func() bool { return hub.GetTotalConnections() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool {
		return hub.GetTotalConnections() == 0 && hub.GetSubscriberCount("u3") == 0
	}, 2*time.Second, 10*time.Millisecond)
}

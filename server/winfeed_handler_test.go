package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/blackscorpionster/rubits/pkg/winfeed"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWinFeed_Stream(t *testing.T) {
	gin.SetMode(gin.TestMode)
	feed := winfeed.New(4, 5)
	feed.Publish(winfeed.Win{TicketID: "earlier", DrawID: "draw-1", Prize: "$2"})

	engine := gin.New()
	engine.GET("/ws/wins", NewWinFeedHandler(feed, nil, zerolog.Nop()).Stream)
	srv := httptest.NewServer(engine)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/wins"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var connected FeedEvent
	require.NoError(t, conn.ReadJSON(&connected))
	assert.Equal(t, EventTypeConnected, connected.Type)
	require.Len(t, connected.Recent, 1)
	assert.Equal(t, "earlier", connected.Recent[0].TicketID)

	require.Eventually(t, func() bool { return feed.Listeners() == 1 }, time.Second, 10*time.Millisecond)
	feed.Publish(winfeed.Win{TicketID: "t-1", DrawID: "draw-1", Prize: "$5", At: time.Now()})

	var win FeedEvent
	require.NoError(t, conn.ReadJSON(&win))
	assert.Equal(t, EventTypeWin, win.Type)
	require.NotNil(t, win.Win)
	assert.Equal(t, "t-1", win.Win.TicketID)
	assert.Equal(t, "$5", win.Win.Prize)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return feed.Listeners() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWinFeed_Heartbeat(t *testing.T) {
	gin.SetMode(gin.TestMode)
	feed := winfeed.New(1, 0)

	handler := NewWinFeedHandler(feed, nil, zerolog.Nop())
	handler.heartbeatPeriod = 20 * time.Millisecond

	engine := gin.New()
	engine.GET("/ws/wins", handler.Stream)
	srv := httptest.NewServer(engine)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/wins", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var event FeedEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, EventTypeConnected, event.Type)
	assert.Empty(t, event.Recent)

	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, EventTypeHeartbeat, event.Type)
}

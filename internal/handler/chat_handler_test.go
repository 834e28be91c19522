package handler_test

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ligth279/xilov5-overhual/internal/dto"
	"github.com/ligth279/xilov5-overhual/internal/handler"
	"github.com/ligth279/xilov5-overhual/internal/middleware"
	"github.com/ligth279/xilov5-overhual/internal/service"
)

var streamFrames = []dto.ChatStreamEvent{
	{Status: service.StreamStarted, SessionID: "s1"},
	{Status: service.StreamGenerating, Chunk: "Half "},
	{Status: service.StreamGenerating, Chunk: "is 1/2."},
	{Status: service.StreamCompleted, SessionID: "s1", FullResponse: "Half is 1/2.", Progress: 1},
}

func chatApp(chat *stubChatService) *fiber.App {
	app := fiber.New()
	app.Use(middleware.CorrelationID())
	handler.NewChatHandler(chat, validator.New(), zerolog.Nop()).Register(app.Group("/api"))
	return app
}

func TestChatRestRoutes(t *testing.T) {
	app := chatApp(&stubChatService{})

	resp, env := doJSON(t, app, http.MethodPost, "/api/chat", `{"message":"half?","language":"en"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(env.Data), "echo: half?")

	resp, _ = doJSON(t, app, http.MethodPost, "/api/chat", `{"message":"half?","language":"english"}`, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/clear-memory", `{}`, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPost, "/api/clear-memory", `{"session_id":"s1"}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/chat/languages", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/chat/ws", "", nil)
	require.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestChatStreamWritesServerSentEvents(t *testing.T) {
	app := chatApp(&stubChatService{frames: streamFrames})

	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", strings.NewReader(`{"message":"half?"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, "text/event-stream", resp.Header.Get(fiber.HeaderContentType))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)

	started := strings.Index(text, "event: started")
	completed := strings.Index(text, "event: completed")
	require.GreaterOrEqual(t, started, 0)
	require.Greater(t, completed, started)
	require.Equal(t, 2, strings.Count(text, "event: generating"))
	require.Contains(t, text, `"full_response":"Half is 1/2."`)
}

func TestChatStreamReportsUnavailableModel(t *testing.T) {
	app := chatApp(&stubChatService{err: service.ErrChatUnavailable})

	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", strings.NewReader(`{"message":"half?"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "event: error")
	require.Contains(t, string(body), service.ErrChatUnavailable.Error())
}

func TestChatWebsocketStreamsFrames(t *testing.T) {
	app := chatApp(&stubChatService{frames: streamFrames})
	baseURL := startServer(t, app)

	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}
	conn, resp, err := dialer.Dial("ws"+strings.TrimPrefix(baseURL, "http")+"/api/chat/ws", nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(dto.ChatRequest{Message: "half?"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	var got []string
	for len(got) < len(streamFrames) {
		var frame dto.ChatStreamEvent
		require.NoError(t, conn.ReadJSON(&frame))
		got = append(got, frame.Status)
	}
	require.Equal(t, []string{"started", "generating", "generating", "completed"}, got)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	var frame dto.ChatStreamEvent
	require.NoError(t, conn.ReadJSON(&frame))
	require.Equal(t, service.StreamError, frame.Status)
}

func startServer(t *testing.T, app *fiber.App) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)

	t.Cleanup(func() {
		_ = app.Shutdown()
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	})
	return "http://" + listener.Addr().String()
}

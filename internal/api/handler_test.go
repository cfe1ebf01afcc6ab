package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"shop-assistant/internal/catalog"
	"shop-assistant/internal/checkout"
	"shop-assistant/internal/command"
	"shop-assistant/internal/service"
	"shop-assistant/internal/vision"
	"shop-assistant/internal/voice"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubIdentifier struct {
	object string
	err    error
}

func (s stubIdentifier) Identify(context.Context, []byte) (vision.Identification, error) {
	return vision.Identification{Object: s.object, Confidence: vision.PlaceholderConfidence}, s.err
}

func newTestRouter(t *testing.T, identifier vision.Identifier) (*gin.Engine, *Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cat := catalog.Default()
	interp := command.Default()
	sessions := service.NewSessionManager(service.AssistantConfig{
		Catalog:     cat,
		Interpreter: interp,
		Identifier:  identifier,
		CheckoutOptions: []checkout.Option{
			checkout.WithPaymentDelay(0),
		},
	})

	h := NewHandler(cat, identifier, interp, sessions)
	router := gin.New()
	h.SetupRoutes(router)
	return router, h
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
}

func TestReadiness(t *testing.T) {
	router, h := newTestRouter(t, nil)

	rec := doJSON(t, router, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 31, decode(t, rec)["products"])

	h.AddReadinessCheck("redis", func(context.Context) error { return errors.New("connection refused") })
	rec = doJSON(t, router, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	details := decode(t, rec)["details"].(map[string]interface{})
	assert.Equal(t, "connection refused", details["redis"])
}

func TestGetPrice(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	t.Run("known product", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/price", gin.H{"item": "cola"})
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "soda", body["item"])
		assert.Equal(t, "USD", body["currency"])
		assert.Equal(t, "beverages", body["category"])
		assert.Equal(t, true, body["inStock"])
		assert.IsType(t, float64(0), body["price"])
	})

	t.Run("unknown product", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/price", gin.H{"item": "spaceship"})
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "spaceship", body["item"])
		assert.Nil(t, body["price"])
		assert.Equal(t, "Product not found in our database", body["message"])
	})

	t.Run("missing item", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/price", gin.H{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "No item specified", decode(t, rec)["error"])
	})
}

func TestSearchProducts(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/products/search", gin.H{"query": "apple"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, len(body["results"].([]interface{})), body["total"])
	assert.NotEmpty(t, body["categories"])

	rec = doJSON(t, router, http.MethodPost, "/api/v1/products/search", gin.H{"query": "apple", "category": "electronics"})
	require.Equal(t, http.StatusOK, rec.Code)
	for _, r := range decode(t, rec)["results"].([]interface{}) {
		assert.Equal(t, "electronics", r.(map[string]interface{})["category"])
	}

	rec = doJSON(t, router, http.MethodPost, "/api/v1/products/search", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIdentifyObject(t *testing.T) {
	router, _ := newTestRouter(t, stubIdentifier{object: "banana"})
	image := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\n"))

	rec := doJSON(t, router, http.MethodPost, "/api/v1/identify", gin.H{"image": image})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "banana", body["object"])
	assert.Equal(t, vision.PlaceholderConfidence, body["confidence"])

	rec = doJSON(t, router, http.MethodPost, "/api/v1/identify", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No image provided", decode(t, rec)["error"])
}

func TestIdentifyObjectUpstreamFailure(t *testing.T) {
	router, _ := newTestRouter(t, stubIdentifier{err: errors.New("rate limited")})
	image := base64.StdEncoding.EncodeToString([]byte("jpeg bytes"))

	rec := doJSON(t, router, http.MethodPost, "/api/v1/identify", gin.H{"image": image})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to identify object", decode(t, rec)["error"])
}

func TestCartValidation(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	tests := []struct {
		name   string
		body   gin.H
		status int
		errMsg string
	}{
		{"add", gin.H{"action": "add", "item": "apple"}, http.StatusOK, ""},
		{"clear without item", gin.H{"action": "clear"}, http.StatusOK, ""},
		{"update", gin.H{"action": "update", "item": "apple", "quantity": 3}, http.StatusOK, ""},
		{"bad action", gin.H{"action": "steal"}, http.StatusBadRequest, "Invalid action"},
		{"missing item", gin.H{"action": "remove"}, http.StatusBadRequest, "Item name required"},
		{"missing quantity", gin.H{"action": "update", "item": "apple"}, http.StatusBadRequest, "Valid quantity required for update"},
		{"negative quantity", gin.H{"action": "update", "item": "apple", "quantity": -1}, http.StatusBadRequest, "Valid quantity required for update"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/v1/cart", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			if tt.errMsg != "" {
				assert.Equal(t, tt.errMsg, body["error"])
			} else {
				assert.Equal(t, true, body["success"])
			}
		})
	}
}

func TestGetCommands(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/commands", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Len(t, body["commands"], len(command.Commands))
	assert.Equal(t, "longest", body["strategy"])
}

func TestCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/price", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame map[string]interface{}
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func readSpeech(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	for {
		frame := readFrame(t, conn)
		if frame["type"] == voice.FrameSpeech {
			return frame["text"].(string)
		}
	}
}

func TestVoiceSession(t *testing.T) {
	router, _ := newTestRouter(t, stubIdentifier{object: "apple"})
	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/sessions/ws-test/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	initial := readFrame(t, conn)
	assert.Equal(t, FrameCart, initial["type"])

	require.NoError(t, conn.WriteJSON(ClientMessage{
		Type:  MsgFrame,
		Image: base64.StdEncoding.EncodeToString([]byte("jpeg bytes")),
	}))
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgTranscript, Text: "what is this"}))

	assert.Equal(t, "Analyzing the image, please wait...", readSpeech(t, conn))
	assert.Contains(t, readSpeech(t, conn), "I can see a apple.")

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgTranscript, Text: "add to cart"}))

	var cart map[string]interface{}
	for cart == nil {
		frame := readFrame(t, conn)
		if frame["type"] == FrameCart {
			cart = frame["cart"].(map[string]interface{})
		}
	}
	assert.EqualValues(t, 1, cart["item_count"])
	assert.Equal(t, "Added apple to cart for $1.99. Your cart total is now $1.99.", readSpeech(t, conn))

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: MsgRecognitionError, Reason: "no-speech"}))
	assert.Equal(t, "I didn't hear anything. Please try speaking again.", readSpeech(t, conn))
}

func wsURL(srv *httptest.Server, sessionID string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/sessions/" + sessionID + "/ws"
}

func TestVoiceSessionReleasedOnDisconnect(t *testing.T) {
	router, h := newTestRouter(t, nil)
	srv := httptest.NewServer(router)
	defer srv.Close()

	for i := 0; i < 5; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, fmt.Sprintf("cycle-%d", i)), nil)
		require.NoError(t, err)
		assert.Equal(t, FrameCart, readFrame(t, conn)["type"])
		conn.Close()
	}

	assert.Eventually(t, func() bool { return h.sessions.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestVoiceSessionKeptWhileAnotherTabIsOpen(t *testing.T) {
	router, h := newTestRouter(t, nil)
	srv := httptest.NewServer(router)
	defer srv.Close()

	first, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "shared"), nil)
	require.NoError(t, err)
	readFrame(t, first)

	second, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "shared"), nil)
	require.NoError(t, err)
	defer second.Close()
	readFrame(t, second)

	first.Close()

	// the second connection still drives the session
	require.NoError(t, second.WriteJSON(ClientMessage{Type: MsgTranscript, Text: "show cart"}))
	assert.True(t, strings.HasPrefix(readSpeech(t, second), "Your cart is empty."))
	assert.Equal(t, 1, h.sessions.Len())

	second.Close()
	assert.Eventually(t, func() bool { return h.sessions.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketOriginCheck(t *testing.T) {
	_, h := newTestRouter(t, nil)

	request := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "http://assistant.local/api/v1/sessions/x/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	assert.True(t, h.checkOrigin(request("https://evil.example")), "no allowlist allows all")

	h.AllowOrigins([]string{"*"})
	assert.True(t, h.checkOrigin(request("https://evil.example")))

	h.AllowOrigins([]string{"https://shop.example"})
	assert.True(t, h.checkOrigin(request("https://shop.example")))
	assert.True(t, h.checkOrigin(request("")))
	assert.True(t, h.checkOrigin(request("http://assistant.local")))
	assert.False(t, h.checkOrigin(request("https://evil.example")))
}

func TestVoiceSessionRejectsForeignOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cat := catalog.Default()
	interp := command.Default()
	h := NewHandler(cat, nil, interp, service.NewSessionManager(service.AssistantConfig{
		Catalog:     cat,
		Interpreter: interp,
	}))
	h.AllowOrigins([]string{"https://shop.example"})
	router := gin.New()
	h.SetupRoutes(router)

	srv := httptest.NewServer(router)
	defer srv.Close()

	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "foreign"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, h.sessions.Len())

	header.Set("Origin", "https://shop.example")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "allowed"), header)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, FrameCart, readFrame(t, conn)["type"])
}

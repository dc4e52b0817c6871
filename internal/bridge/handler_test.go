package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatfuel-dify-bridge/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helpers
// ==========================

// createTestHandler builds a handler around the given config with logging
// silenced: the background pipeline can outlive the request under test.
func createTestHandler(t *testing.T, cfg *Config) *Handler {
	t.Helper()

	handler, err := NewHandler(HandlerOptions{
		CustomConfig: cfg,
		Logger:       logger.NewNoOpLogger(),
	})
	require.NoError(t, err)
	return handler
}

func postTurn(handler *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/chatfuel", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeAck(t *testing.T, rec *httptest.ResponseRecorder) ackResponse {
	t.Helper()

	var ack ackResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	return ack
}

// ==========================
// Handler Construction Tests
// ==========================

func TestNewHandler_DefaultConfig(t *testing.T) {
	handler, err := NewHandler(HandlerOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1500, handler.GetConfig().SegmentMaxChars)
}

func TestNewHandler_InvalidConfigRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SegmentMaxChars = 0

	_, err := NewHandler(HandlerOptions{CustomConfig: cfg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "segment_max_chars")
}

// ==========================
// Request Handling Tests
// ==========================

func TestServeHTTP_AcknowledgesImmediately(t *testing.T) {
	// Upstream deliberately slower than the assertion window: the ack must
	// be written before any upstream work happens.
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]string{"answer": "late", "conversation_id": "c"})
	}))
	defer upstream.Close()

	cfg := DefaultConfig()
	cfg.DifyAPIKey = "test-key"
	cfg.DifyBaseURL = upstream.URL

	handler := createTestHandler(t, cfg)

	start := time.Now()
	rec := postTurn(handler, `{"user_text": "hi", "chatfuel_user_id": "user-1"}`)
	elapsed := time.Since(start)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Less(t, elapsed, 300*time.Millisecond, "ack must not wait for the model")

	ack := decodeAck(t, rec)
	require.Len(t, ack.Messages, 1)
	assert.Equal(t, AckText, ack.Messages[0].Text)
}

func TestServeHTTP_FullPipelineDelivers(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"answer": "the answer", "conversation_id": "conv-next"})
	}))
	defer upstream.Close()

	delivered := make(chan string, 1)
	delivery := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Answer string `json:"dify_answer"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		delivered <- body.Answer
		w.WriteHeader(http.StatusOK)
	}))
	defer delivery.Close()

	cfg := DefaultConfig()
	cfg.DifyAPIKey = "test-key"
	cfg.DifyBaseURL = upstream.URL
	cfg.ChatfuelBaseURL = delivery.URL
	cfg.ChatfuelBotID = "bot-1"
	cfg.ChatfuelToken = "token-1"
	cfg.DefaultBlockID = "block-1"

	handler := createTestHandler(t, cfg)
	rec := postTurn(handler, `{"user_text": "hi", "chatfuel_user_id": "user-1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	select {
	case answer := <-delivered:
		assert.Equal(t, "the answer", answer)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline never delivered the answer")
	}
}

func TestServeHTTP_MethodNotAllowed(t *testing.T) {
	handler := createTestHandler(t, DefaultConfig())

	req := httptest.NewRequest(http.MethodGet, "/chatfuel", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServeHTTP_InvalidPayloadRejected(t *testing.T) {
	handler := createTestHandler(t, DefaultConfig())

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{not json`},
		{"wrong envelope type", `[1, 2, 3]`},
		{"wrong field type", `{"chatfuel_user_id": true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postTurn(handler, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestServeHTTP_EmptyBodyStillAcked(t *testing.T) {
	handler := createTestHandler(t, DefaultConfig())

	rec := postTurn(handler, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	ack := decodeAck(t, rec)
	require.Len(t, ack.Messages, 1)
	assert.Equal(t, AckText, ack.Messages[0].Text)
}

func TestServeHTTP_MissingUserIDAckedWithoutPipeline(t *testing.T) {
	// No upstream server exists; if the pipeline ran it would only log, but
	// the ack must still go out.
	cfg := DefaultConfig()
	cfg.DifyAPIKey = "test-key"

	handler := createTestHandler(t, cfg)
	rec := postTurn(handler, `{"user_text": "hi"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	ack := decodeAck(t, rec)
	require.Len(t, ack.Messages, 1)
	assert.Equal(t, AckText, ack.Messages[0].Text)
}

func TestHealthCheck_NoGuardHealthy(t *testing.T) {
	handler := createTestHandler(t, DefaultConfig())
	assert.NoError(t, handler.HealthCheck(context.Background()))
}

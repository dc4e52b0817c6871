package dify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatfuel-dify-bridge/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsk_Success(t *testing.T) {
	var gotRequest chatMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat-messages", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))

		answer := "hello there"
		json.NewEncoder(w).Encode(chatMessageResponse{
			Answer:         &answer,
			ConversationID: "conv-42",
		})
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, 5*time.Second)
	answer, err := client.Ask(context.Background(), "hi", "user-1", "conv-42", map[string]interface{}{"locale": "en"})

	require.NoError(t, err)
	assert.Equal(t, "hello there", answer.Text)
	assert.Equal(t, "conv-42", answer.ConversationID)

	assert.Equal(t, "hi", gotRequest.Query)
	assert.Equal(t, "blocking", gotRequest.ResponseMode)
	assert.Equal(t, "user-1", gotRequest.User)
	assert.Equal(t, "conv-42", gotRequest.ConversationID)
	assert.Equal(t, "chatfuel", gotRequest.Inputs["from_channel"])
	assert.Equal(t, "en", gotRequest.Inputs["locale"])
}

func TestAsk_RetriesOnceWithoutStaleHandle(t *testing.T) {
	var calls []chatMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		calls = append(calls, req)

		if req.ConversationID != "" {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"code": "not_found", "message": "Conversation Not Exists."})
			return
		}

		answer := "fresh conversation answer"
		json.NewEncoder(w).Encode(chatMessageResponse{
			Answer:         &answer,
			ConversationID: "conv-new",
		})
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, 5*time.Second)
	answer, err := client.Ask(context.Background(), "hi", "user-1", "conv-stale", nil)

	require.NoError(t, err)
	assert.Equal(t, "fresh conversation answer", answer.Text)
	assert.Equal(t, "conv-new", answer.ConversationID)

	require.Len(t, calls, 2)
	assert.Equal(t, "conv-stale", calls[0].ConversationID)
	assert.Empty(t, calls[1].ConversationID, "retry must drop the conversation handle")
}

func TestAsk_NoRetryWithoutHandle(t *testing.T) {
	callCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"code": "not_found"})
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, 5*time.Second)
	_, err := client.Ask(context.Background(), "hi", "user-1", "", nil)

	require.Error(t, err)
	assert.Equal(t, 1, callCount)

	upErr, ok := errors.AsUpstream(err)
	require.True(t, ok)
	assert.Equal(t, 404, upErr.Status)
	assert.Equal(t, "not_found", upErr.Code)
}

func TestAsk_NoRetryOnOtherErrors(t *testing.T) {
	callCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"code": "internal_server_error"})
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, 5*time.Second)
	_, err := client.Ask(context.Background(), "hi", "user-1", "conv-1", nil)

	require.Error(t, err)
	assert.Equal(t, 1, callCount)

	upErr, ok := errors.AsUpstream(err)
	require.True(t, ok)
	assert.Equal(t, 500, upErr.Status)
	assert.False(t, upErr.IsStaleConversation())
}

func TestAsk_SecondFailurePropagates(t *testing.T) {
	callCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"code": "not_found"})
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, 5*time.Second)
	_, err := client.Ask(context.Background(), "hi", "user-1", "conv-1", nil)

	require.Error(t, err)
	assert.Equal(t, 2, callCount, "exactly one retry, then the failure propagates")
}

func TestAsk_AnswerPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{
			name:     "primary answer field",
			body:     `{"answer": "primary", "outputs": {"text": "secondary"}, "conversation_id": "c"}`,
			expected: "primary",
		},
		{
			name:     "empty answer string still wins",
			body:     `{"answer": "", "outputs": {"text": "secondary"}, "conversation_id": "c"}`,
			expected: "",
		},
		{
			name:     "structured output fallback",
			body:     `{"outputs": {"text": "from outputs"}, "conversation_id": "c"}`,
			expected: "from outputs",
		},
		{
			name:     "placeholder when both absent",
			body:     `{"conversation_id": "c"}`,
			expected: PlaceholderAnswer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient("test-key", server.URL, 5*time.Second)
			answer, err := client.Ask(context.Background(), "hi", "user-1", "", nil)

			require.NoError(t, err)
			assert.Equal(t, tt.expected, answer.Text)
		})
	}
}

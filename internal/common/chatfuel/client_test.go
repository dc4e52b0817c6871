package chatfuel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPush_Success(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	var gotBody pushRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "bot-123", "secret-token", 5*time.Second)
	err := client.Push(context.Background(), "user-42", "block-7", "hello again", "conv-9")

	require.NoError(t, err)
	assert.Equal(t, "/bots/bot-123/users/user-42/send", gotPath)
	assert.Equal(t, []string{"secret-token"}, gotQuery["chatfuel_token"])
	assert.Equal(t, []string{"block-7"}, gotQuery["chatfuel_block_id"])
	assert.Equal(t, "hello again", gotBody.Answer)
	assert.Equal(t, "conv-9", gotBody.ConversationID)
}

func TestPush_EscapesUserID(t *testing.T) {
	var gotEscapedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEscapedPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "bot-123", "secret-token", 5*time.Second)
	err := client.Push(context.Background(), "user/with spaces", "block-7", "msg", "")

	require.NoError(t, err)
	assert.Equal(t, "/bots/bot-123/users/user%2Fwith%20spaces/send", gotEscapedPath)
}

func TestPush_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"success": false, "error": "bad token"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "bot-123", "wrong-token", 5*time.Second)
	err := client.Push(context.Background(), "user-42", "block-7", "msg", "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "bad token")
}

func TestPush_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "bot-123", "secret-token", 5*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := client.Push(ctx, "user-42", "block-7", "msg", "")
	require.Error(t, err)
}

// internal/common/chatfuel/client.go
package chatfuel

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	commonhttp "chatfuel-dify-bridge/internal/common/http"
)

// Client pushes messages to Chatfuel users through the broadcast API.
// The push endpoint is per-user; token and target block travel as query
// parameters, the message payload as JSON body.
type Client struct {
	baseURL    string
	botID      string
	token      string
	httpClient *commonhttp.Client
}

type pushRequest struct {
	Answer         string `json:"dify_answer"`
	ConversationID string `json:"dify_conversation_id"`
}

func NewClient(baseURL, botID, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		botID:      botID,
		token:      token,
		httpClient: commonhttp.NewClient(timeout),
	}
}

// Push sends one message to a user, carrying the conversation handle the
// front-end should persist for the next turn. blockID selects which Chatfuel
// block renders the message.
func (c *Client) Push(ctx context.Context, userID, blockID, message, conversationID string) error {
	endpoint := fmt.Sprintf("%s/bots/%s/users/%s/send?%s",
		c.baseURL,
		c.botID,
		url.PathEscape(userID),
		url.Values{
			"chatfuel_token":    {c.token},
			"chatfuel_block_id": {blockID},
		}.Encode(),
	)

	resp, err := c.httpClient.PostJSON(ctx, endpoint, pushRequest{
		Answer:         message,
		ConversationID: conversationID,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to execute push request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("push request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

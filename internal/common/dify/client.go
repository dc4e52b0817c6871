// internal/common/dify/client.go
package dify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"chatfuel-dify-bridge/internal/common/errors"
	commonhttp "chatfuel-dify-bridge/internal/common/http"
	"chatfuel-dify-bridge/internal/common/metrics"
)

// PlaceholderAnswer is returned when the service responds without any answer
// field. A missing answer is not an error.
const PlaceholderAnswer = "No answer returned from Dify."

// channelTag is always present in the request inputs so the model can tell
// which front-end a turn came from.
const channelTag = "chatfuel"

// Client calls the Dify chat-messages API in blocking mode.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *commonhttp.Client
}

// Answer is the extracted result of one chat-messages call.
type Answer struct {
	Text           string
	ConversationID string
}

type chatMessageRequest struct {
	Query          string                 `json:"query"`
	ResponseMode   string                 `json:"response_mode"`
	User           string                 `json:"user"`
	Inputs         map[string]interface{} `json:"inputs"`
	ConversationID string                 `json:"conversation_id,omitempty"`
}

type chatMessageResponse struct {
	Answer         *string `json:"answer"`
	ConversationID string  `json:"conversation_id"`
	Outputs        struct {
		Text *string `json:"text"`
	} `json:"outputs"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewClient creates a Dify client. Model responses are slow; timeout should
// be on the order of two minutes.
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: commonhttp.NewClient(timeout),
	}
}

// Ask sends one question and blocks until the model answers. If the service
// rejects the supplied conversation handle as unknown (its state can expire
// independently of our caller's cached handle), the request is retried
// exactly once without the handle so the turn starts a fresh conversation.
// Any other failure, or a second failure, propagates unretried.
func (c *Client) Ask(ctx context.Context, question, userID, conversationID string, extra map[string]interface{}) (*Answer, error) {
	inputs := map[string]interface{}{"from_channel": channelTag}
	for k, v := range extra {
		inputs[k] = v
	}

	req := chatMessageRequest{
		Query:          question,
		ResponseMode:   "blocking",
		User:           userID,
		Inputs:         inputs,
		ConversationID: conversationID,
	}

	answer, err := c.send(ctx, &req)
	if err == nil {
		return answer, nil
	}

	if upErr, ok := errors.AsUpstream(err); ok && upErr.IsStaleConversation() && conversationID != "" {
		metrics.UpstreamRetries.Inc()
		retryReq := req
		retryReq.ConversationID = ""
		return c.send(ctx, &retryReq)
	}

	return nil, err
}

func (c *Client) send(ctx context.Context, req *chatMessageRequest) (*Answer, error) {
	start := time.Now()

	resp, err := c.httpClient.PostJSON(ctx, c.baseURL+"/v1/chat-messages", req, map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	})
	if err != nil {
		metrics.UpstreamRequestDuration.WithLabelValues("transport_error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("failed to execute chat-messages request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read chat-messages response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.UpstreamRequestDuration.WithLabelValues("http_error").Observe(time.Since(start).Seconds())

		var errResp errorResponse
		_ = json.Unmarshal(body, &errResp)
		return nil, &errors.UpstreamError{
			Status: resp.StatusCode,
			Code:   errResp.Code,
			Body:   string(body),
		}
	}

	metrics.UpstreamRequestDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())

	var msgResp chatMessageResponse
	if err := json.Unmarshal(body, &msgResp); err != nil {
		return nil, fmt.Errorf("failed to decode chat-messages response: %w", err)
	}

	return &Answer{
		Text:           extractAnswer(&msgResp),
		ConversationID: msgResp.ConversationID,
	}, nil
}

// extractAnswer applies the answer precedence: the primary answer field,
// then the structured-output text, then a fixed placeholder.
func extractAnswer(resp *chatMessageResponse) string {
	if resp.Answer != nil {
		return *resp.Answer
	}
	if resp.Outputs.Text != nil {
		return *resp.Outputs.Text
	}
	return PlaceholderAnswer
}

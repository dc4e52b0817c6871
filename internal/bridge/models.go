package bridge

import (
	"fmt"
	"strings"
)

// AckText is returned to the front-end synchronously, before any upstream
// work begins. Chatfuel shows it while the model is thinking.
const AckText = "Thinking… I'll reply shortly!"

// Inbound payload keys. The legacy text attribute contains spaces, which
// rules out struct tags; the payload is parsed as a map instead.
const (
	keyUserText        = "user_text"
	keyLegacyUserText  = "chatfuel user input"
	keyConversationID  = "dify_conversation_id"
	keyChatfuelUserID  = "chatfuel_user_id"
	keyMessengerUserID = "messenger_user_id"
	keyInputs          = "inputs"
	keyBlockID         = "block_id"
)

// Turn is one parsed inbound message and everything the pipeline needs to
// answer it. All fields are fixed before the acknowledgment is written; the
// background pipeline never touches the original request again.
type Turn struct {
	TurnID         string
	Question       string
	UserID         string
	ConversationID string
	Extra          map[string]interface{}
	BlockID        string
}

// NewTurnFromPayload builds a Turn from the decoded webhook payload.
func NewTurnFromPayload(turnID string, payload map[string]interface{}) *Turn {
	question := stringField(payload, keyUserText)
	if question == "" {
		question = stringField(payload, keyLegacyUserText)
	}

	userID := stringField(payload, keyChatfuelUserID)
	if userID == "" {
		userID = stringField(payload, keyMessengerUserID)
	}

	var extra map[string]interface{}
	if m, ok := payload[keyInputs].(map[string]interface{}); ok {
		extra = m
	}

	return &Turn{
		TurnID:         turnID,
		Question:       strings.TrimSpace(question),
		UserID:         userID,
		ConversationID: NormalizeHandle(stringField(payload, keyConversationID)),
		Extra:          extra,
		BlockID:        stringField(payload, keyBlockID),
	}
}

// stringField reads a payload value as a string. Chatfuel sends some
// identifiers as JSON numbers, so those are rendered back to their decimal
// form rather than dropped.
func stringField(payload map[string]interface{}, key string) string {
	switch v := payload[key].(type) {
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	default:
		return ""
	}
}

// NormalizeHandle maps the inbound conversation handle to its canonical
// form. Empty, whitespace-only, and the literal "null" (any case) all mean
// absent: the upstream service rejects an empty-string handle differently
// than a missing one, so the distinction has to be collapsed before sending.
func NormalizeHandle(handle string) string {
	trimmed := strings.TrimSpace(handle)
	if trimmed == "" || strings.EqualFold(trimmed, "null") {
		return ""
	}
	return trimmed
}

type ackMessage struct {
	Text string `json:"text"`
}

// ackResponse is the fixed synchronous reply shape Chatfuel expects.
type ackResponse struct {
	Messages []ackMessage `json:"messages"`
}

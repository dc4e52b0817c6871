package bridge

import (
	"strings"

	"chatfuel-dify-bridge/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// inboundSchema constrains the webhook envelope. Chatfuel attribute values
// arrive as strings, but user identifiers are numeric for some channels and
// the conversation handle can be an explicit null, so the field types are
// deliberately loose. Unknown attributes pass through untouched.
const inboundSchema = `{
	"type": "object",
	"properties": {
		"user_text":             {"type": "string"},
		"chatfuel user input":   {"type": "string"},
		"dify_conversation_id":  {"type": ["string", "null"]},
		"chatfuel_user_id":      {"type": ["string", "number"]},
		"messenger_user_id":     {"type": ["string", "number"]},
		"inputs":                {"type": "object"},
		"block_id":              {"type": "string"}
	},
	"additionalProperties": true
}`

var inboundSchemaLoader = gojsonschema.NewStringLoader(inboundSchema)

// ValidateInbound checks the raw webhook body against the envelope schema.
func ValidateInbound(body []byte) error {
	result, err := gojsonschema.Validate(inboundSchemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return errors.NewValidationError(err.Error())
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}
		return errors.NewValidationError(strings.Join(messages, "; "))
	}

	return nil
}

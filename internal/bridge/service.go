package bridge

import (
	"context"

	"chatfuel-dify-bridge/internal/common/chatfuel"
	"chatfuel-dify-bridge/internal/common/dify"
	"chatfuel-dify-bridge/internal/common/errors"
	"chatfuel-dify-bridge/internal/common/logger"
	"chatfuel-dify-bridge/internal/common/metrics"
	"chatfuel-dify-bridge/internal/format"
)

// Service runs the answer pipeline for one turn: ask the model, normalize
// the answer, segment it, and push the segments back to the user in order.
type Service struct {
	config         *Config
	logger         logger.Logger
	difyClient     *dify.Client
	chatfuelClient *chatfuel.Client
}

type ServiceDependencies struct {
	Logger logger.Logger

	// Optional overrides, used by tests. When nil, clients are built from
	// the config if it carries the needed credentials.
	Dify     *dify.Client
	Chatfuel *chatfuel.Client
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	difyClient := deps.Dify
	if difyClient == nil && config.UpstreamConfigured() {
		difyClient = dify.NewClient(config.DifyAPIKey, config.DifyBaseURL, config.UpstreamTimeout)
	}

	chatfuelClient := deps.Chatfuel
	if chatfuelClient == nil && config.DeliveryConfigured() {
		chatfuelClient = chatfuel.NewClient(config.ChatfuelBaseURL, config.ChatfuelBotID, config.ChatfuelToken, config.DeliveryTimeout)
	}

	return &Service{
		config:         config,
		logger:         deps.Logger,
		difyClient:     difyClient,
		chatfuelClient: chatfuelClient,
	}
}

// ProcessTurn executes the full pipeline for one turn. Errors are returned
// to the background runner for logging; nothing here reaches the end user,
// who already received the acknowledgment.
func (s *Service) ProcessTurn(ctx context.Context, turn *Turn) error {
	log := s.logger.WithFields(map[string]interface{}{
		"turnId": turn.TurnID,
		"userId": turn.UserID,
	})

	if s.difyClient == nil {
		log.Warn("Upstream not configured, skipping turn", map[string]interface{}{
			"missing": "DIFY_API_KEY",
		})
		return errors.NewConfigurationMissingError("upstream", []string{"DIFY_API_KEY"})
	}

	log.Info("Asking model service", map[string]interface{}{
		"questionLength":  len(turn.Question),
		"hasConversation": turn.ConversationID != "",
	})

	answer, err := s.difyClient.Ask(ctx, turn.Question, turn.UserID, turn.ConversationID, turn.Extra)
	if err != nil {
		return err
	}

	// The handle to persist for the next turn: renewed by the service when
	// it started a fresh conversation, otherwise carried forward.
	nextHandle := answer.ConversationID
	if nextHandle == "" {
		nextHandle = turn.ConversationID
	}

	result := format.Normalize(answer.Text)
	segments := format.Split(result.BodyText, s.config.SegmentMaxChars)

	if len(segments) == 0 && result.CitationBlock == "" {
		log.Info("Nothing to deliver after normalization", nil)
		return nil
	}

	if s.chatfuelClient == nil {
		log.Warn("Delivery not configured, can't send final answer", map[string]interface{}{
			"missing": []string{"CHATFUEL_BOT_ID", "CHATFUEL_TOKEN", "CHATFUEL_ANSWER_BLOCK_ID"},
		})
		return errors.NewConfigurationMissingError("delivery", []string{"CHATFUEL_BOT_ID", "CHATFUEL_TOKEN", "CHATFUEL_ANSWER_BLOCK_ID"})
	}

	blockID := turn.BlockID
	if blockID == "" {
		blockID = s.config.DefaultBlockID
	}

	log.Info("Delivering answer", map[string]interface{}{
		"segments":     len(segments),
		"citations":    len(result.Citations),
		"nextHandle":   nextHandle,
		"targetBlock":  blockID,
		"answerLength": len(result.BodyText),
	})

	// A citation block with no body still gets delivered as one message.
	if len(segments) == 0 {
		segments = []string{result.CitationBlock}
		result.CitationBlock = ""
	}

	// Sequential, order-preserving delivery. The citation block rides on
	// every segment: each push payload stands alone on the receiving side.
	for i, segment := range segments {
		message := segment
		if result.CitationBlock != "" {
			message = segment + "\n\n" + result.CitationBlock
		}

		if err := s.chatfuelClient.Push(ctx, turn.UserID, blockID, message, nextHandle); err != nil {
			metrics.DeliveryFailures.Inc()
			log.Error("Segment push failed, aborting remaining segments", map[string]interface{}{
				"segmentIndex": i,
				"segments":     len(segments),
				"error":        err.Error(),
			})
			return errors.NewDeliveryError(i, err)
		}

		metrics.SegmentsDelivered.Inc()
		log.Debug("Segment delivered", map[string]interface{}{
			"segmentIndex": i,
			"segments":     len(segments),
		})
	}

	log.Info("Turn completed", map[string]interface{}{
		"segments": len(segments),
	})
	return nil
}

// stageForError maps a pipeline error to the stage label used in metrics.
func stageForError(err error) string {
	if stdErr, ok := err.(*errors.StandardError); ok {
		switch stdErr.Code {
		case errors.ErrCodeConfigurationMissing:
			return "config"
		case errors.ErrCodeDeliveryFailed:
			return "delivery"
		default:
			return "upstream"
		}
	}
	if _, ok := errors.AsUpstream(err); ok {
		return "upstream"
	}
	return "upstream"
}

// errorCode extracts the structured code for metrics labels.
func errorCode(err error) string {
	if stdErr, ok := err.(*errors.StandardError); ok {
		return string(stdErr.Code)
	}
	if _, ok := errors.AsUpstream(err); ok {
		return string(errors.ErrCodeUpstreamRequestFailed)
	}
	return "UNKNOWN_ERROR"
}

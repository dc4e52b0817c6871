package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"chatfuel-dify-bridge/internal/common/config"
	"chatfuel-dify-bridge/internal/common/database"
	"chatfuel-dify-bridge/internal/common/logger"
	"chatfuel-dify-bridge/internal/common/metrics"
	"chatfuel-dify-bridge/internal/common/observability"

	"github.com/google/uuid"
)

// maxInboundBody bounds the webhook payload size.
const maxInboundBody = 1 << 20

// Handler accepts inbound turns, acknowledges them immediately, and hands
// the rest of the work to a background goroutine. The inbound connection
// never sees pipeline errors; they are logged for the operator only.
type Handler struct {
	config  *Config
	logger  logger.Logger
	service *Service
	guard   *TurnGuard
	obs     *observability.Observability
}

type HandlerOptions struct {
	AppConfig     *config.Config
	CustomConfig  *Config
	Logger        logger.Logger
	Redis         *database.RedisClient
	Observability *observability.Observability
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	bridgeConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := bridgeConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bridge configuration: %w", err)
	}

	var loggerInstance logger.Logger
	if opts.Logger != nil {
		loggerInstance = opts.Logger
	} else {
		loggerInstance = logger.NewStructured("info", "json")
	}

	handler := &Handler{
		config: bridgeConfig,
		logger: loggerInstance,
		obs:    opts.Observability,
	}

	handler.service = NewService(ServiceDependencies{
		Logger: loggerInstance,
	}, bridgeConfig)

	if opts.Redis != nil {
		handler.guard = NewTurnGuard(opts.Redis, bridgeConfig.GuardTTL, loggerInstance)
	}

	return handler, nil
}

// ServeHTTP handles POST /chatfuel. The acknowledgment is written before
// any upstream work starts so the front-end never times out waiting on the
// model.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxInboundBody))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	if len(body) == 0 {
		body = []byte("{}")
	}

	if err := ValidateInbound(body); err != nil {
		h.logger.Warn("Rejected inbound payload", map[string]interface{}{
			"error": err.Error(),
		})
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	turn := NewTurnFromPayload(uuid.NewString(), payload)

	// Fire-and-acknowledge: reply now, work later.
	writeJSON(w, http.StatusOK, ackResponse{
		Messages: []ackMessage{{Text: AckText}},
	})

	metrics.TurnsStarted.Inc()

	if turn.UserID == "" {
		h.logger.Warn("Missing user id, can't send follow-up", map[string]interface{}{
			"turnId": turn.TurnID,
		})
		return
	}

	go h.runPipeline(turn)
}

// runPipeline owns the background half of a turn, including its error
// handling. It is never awaited by the request handler and has no
// cancellation path; the HTTP client timeouts bound its lifetime.
func (h *Handler) runPipeline(turn *Turn) {
	ctx := context.Background()
	start := time.Now()

	metrics.TurnsActive.Inc()
	defer metrics.TurnsActive.Dec()

	if overlap := h.guard.Begin(ctx, turn.UserID); overlap {
		metrics.TurnsOverlapping.Inc()
		h.logger.Warn("Turn overlaps an in-flight turn for the same user", map[string]interface{}{
			"turnId": turn.TurnID,
			"userId": turn.UserID,
		})
	}
	defer h.guard.End(ctx, turn.UserID)

	err := h.service.ProcessTurn(ctx, turn)

	status := "success"
	if err != nil {
		status = "failed"
		metrics.TurnsFailed.WithLabelValues(stageForError(err), errorCode(err)).Inc()
		h.logger.Error("Turn pipeline failed", map[string]interface{}{
			"turnId": turn.TurnID,
			"userId": turn.UserID,
			"stage":  stageForError(err),
			"error":  err.Error(),
		})
	} else {
		metrics.TurnsCompleted.Inc()
	}

	if h.obs != nil {
		h.obs.RecordTurnProcessed(ctx, status)
		h.obs.RecordTurnDuration(ctx, time.Since(start), status)
	}
}

// HealthCheck verifies the handler's collaborators that can be probed
// cheaply. Missing credentials are reported by the readiness endpoint, not
// treated as a health failure.
func (h *Handler) HealthCheck(ctx context.Context) error {
	if h.guard != nil && h.guard.redis != nil {
		if err := h.guard.redis.Ping(ctx); err != nil {
			return fmt.Errorf("turn guard store unavailable: %w", err)
		}
	}
	return nil
}

// GetConfig exposes the effective configuration.
func (h *Handler) GetConfig() *Config {
	return h.config
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/gabarita-ai/gabarita/internal/identity"
	"github.com/gabarita-ai/gabarita/internal/ratelimit"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20 // 1MB

// Handler serves POST /api/tutor.
type Handler struct {
	agent       *Service
	rateLimiter ratelimit.Limiter
	log         ConversationLogger
	maxBodySize int64
	timeout     time.Duration
	logger      *slog.Logger
}

// HandlerConfig tunes a Handler.
type HandlerConfig struct {
	MaxRequestBodySize int64
	// RequestTimeout bounds a single model call. Zero means no extra bound.
	RequestTimeout time.Duration
}

// NewHandler creates a tutor handler. limiter and conversationLogger may be nil.
func NewHandler(agentService *Service, limiter ratelimit.Limiter, conversationLogger ConversationLogger, cfg HandlerConfig, logger *slog.Logger) *Handler {
	if conversationLogger == nil {
		conversationLogger = noopConversationLogger{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := cfg.MaxRequestBodySize
	if maxBody <= 0 {
		maxBody = defaultMaxRequestBodySize
	}
	return &Handler{
		agent:       agentService,
		rateLimiter: limiter,
		log:         conversationLogger,
		maxBodySize: maxBody,
		timeout:     cfg.RequestTimeout,
		logger:      logger,
	}
}

// HandleTutor handles POST /api/tutor requests. Errors are returned as plain text.
func (h *Handler) HandleTutor(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req TutorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		req.UserID = identity.UserIDFromContext(r.Context())
	}
	req.SessionID = identity.SessionIDFromContext(r.Context())

	if err := h.agent.Validate(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Rate-limit by userID only so clients cannot bypass throttling by
	// rotating session IDs.
	if h.rateLimiter != nil && !h.rateLimiter.Allow(r.Context(), req.UserID) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	reqID := chiMiddleware.GetReqID(r.Context())
	if reqID == "" {
		reqID = uuid.NewString()
	}
	contextType := ""
	if req.Context.TutorContext != nil {
		contextType = string(req.Context.Kind())
	}

	h.logger.Info("Tutor request",
		"user_id", req.UserID,
		"session_id", req.SessionID,
		"context_type", contextType,
		"proactive", req.Proactive(),
		"history_len", len(req.History),
		"message_length", len(req.UserMessage),
	)
	if !req.Proactive() {
		h.log.Log(ConversationLogEvent{
			Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
			UserID:     req.UserID,
			SessionID:  req.SessionID,
			Channel:    "tutor_http",
			Direction:  "outbound",
			EventType:  "tutor_user_message",
			ContentRaw: req.UserMessage,
			Meta: map[string]any{
				"request_id":   reqID,
				"context_type": contextType,
			},
		})
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	started := time.Now()
	message, err := h.agent.Reply(ctx, req)
	if err != nil {
		h.logger.Error("Tutor reply failed", "user_id", req.UserID, "error", err)
		h.logAssistantMessage(req, "", reqID, contextType, err.Error(), time.Since(started))
		http.Error(w, "failed to get tutor response", http.StatusBadGateway)
		return
	}
	h.logAssistantMessage(req, message, reqID, contextType, "", time.Since(started))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(TutorResponse{Message: message}); err != nil {
		h.logger.Warn("failed to encode tutor response", "error", err)
	}
}

func (h *Handler) logAssistantMessage(req TutorRequest, content, requestID, contextType, errMsg string, elapsed time.Duration) {
	eventType := "tutor_model_message"
	if req.Proactive() {
		eventType = "tutor_proactive_message"
	}
	h.log.Log(ConversationLogEvent{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		UserID:     req.UserID,
		SessionID:  req.SessionID,
		Channel:    "tutor_http",
		Direction:  "inbound",
		EventType:  eventType,
		ContentRaw: content,
		Meta: map[string]any{
			"request_id":   requestID,
			"context_type": contextType,
			"error":        errMsg,
			"latency_ms":   elapsed.Milliseconds(),
		},
	})
}

// RegisterRoutes registers tutor routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/tutor", h.HandleTutor)
}

// Close releases handler resources.
func (h *Handler) Close() {
	if h.log != nil {
		if err := h.log.Close(); err != nil {
			h.logger.Warn("failed to close conversation logger", "error", err)
		}
	}
}

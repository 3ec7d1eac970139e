package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/hypeshelf/internal/apperror"
	"github.com/sakif/hypeshelf/internal/metrics"
	"github.com/sakif/hypeshelf/internal/service"
	"github.com/sakif/hypeshelf/internal/webhook"
)

// maxWebhookBytes bounds provider event payloads.
const maxWebhookBytes = 1 << 20

// WebhookHandler receives identity provider lifecycle events.
type WebhookHandler struct {
	verifier *webhook.Verifier
	replay   *webhook.ReplayGuard
	identity *service.IdentityService
	logger   *slog.Logger
}

func NewWebhookHandler(
	verifier *webhook.Verifier,
	replay *webhook.ReplayGuard,
	identity *service.IdentityService,
	logger *slog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		verifier: verifier,
		replay:   replay,
		identity: identity,
		logger:   logger,
	}
}

type webhookResponse struct {
	Success bool `json:"success"`
}

// HandleIdentityEvent applies one signed user lifecycle event.
//
// HTTP: POST /webhooks/identity
//
//	400  svix headers missing, body unreadable or not an event
//	401  signature does not verify
//	500  the store failed; the provider will retry
//	200  {"success": true}, including ignored and duplicate events
func (h *WebhookHandler) HandleIdentityEvent(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		writeWebhookError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if err := h.verifier.Verify(payload, r.Header); err != nil {
		metrics.IdentityEvents.WithLabelValues("unverified", "rejected").Inc()
		if errors.Is(err, webhook.ErrMissingHeaders) {
			h.logger.Warn("webhook: missing svix headers")
			writeWebhookError(w, http.StatusBadRequest, "missing svix headers")
			return
		}
		h.logger.Warn("webhook: signature verification failed", slog.String("error", err.Error()))
		writeWebhookError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	ev, err := webhook.ParseEvent(payload)
	if err != nil {
		metrics.IdentityEvents.WithLabelValues("unparsed", "rejected").Inc()
		h.logger.Warn("webhook: bad payload", slog.String("error", err.Error()))
		writeWebhookError(w, http.StatusBadRequest, "invalid event payload")
		return
	}

	ctx := r.Context()
	msgID := r.Header.Get(webhook.HeaderID)
	first, err := h.replay.FirstDelivery(ctx, msgID)
	if err != nil {
		// sync is idempotent, so process anyway
		h.logger.Warn("webhook: replay guard unavailable", slog.String("error", err.Error()))
		first = true
	}
	if !first {
		metrics.IdentityEvents.WithLabelValues(ev.Type, "duplicate").Inc()
		h.logger.Info("webhook: duplicate delivery", slog.String("msgID", msgID), slog.String("type", ev.Type))
		writeJSON(w, http.StatusOK, webhookResponse{Success: true})
		return
	}

	if err := h.identity.HandleEvent(ctx, ev.Type, ev.Data.Profile()); err != nil {
		if relErr := h.replay.Release(ctx, msgID); relErr != nil {
			h.logger.Warn("webhook: releasing replay claim", slog.String("error", relErr.Error()))
		}
		h.logger.Error("webhook: processing event failed",
			slog.String("msgID", msgID),
			slog.String("type", ev.Type),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, apperror.ErrValidation) {
			writeWebhookError(w, http.StatusBadRequest, "invalid event payload")
			return
		}
		writeWebhookError(w, http.StatusInternalServerError, "error processing webhook")
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{Success: true})
}

func writeWebhookError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

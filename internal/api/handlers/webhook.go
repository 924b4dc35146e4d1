package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-reminders/internal/api/middleware"
	"github.com/dvloznov/finance-reminders/internal/identity"
	"github.com/dvloznov/finance-reminders/internal/interactions"
)

// webhookPayload is the subset of a WhatsApp Cloud API webhook we read.
type webhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Messages []struct {
					From      string `json:"from"`
					ID        string `json:"id"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// WebhookHandler receives WhatsApp webhooks and records inbound user
// messages as interactions.
type WebhookHandler struct {
	verifyToken string
	tracker     interactions.Tracker
	normalize   func(string) string
	now         func() time.Time
	log         zerolog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(verifyToken string, tracker interactions.Tracker, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifyToken: verifyToken,
		tracker:     tracker,
		normalize:   identity.Normalize,
		now:         time.Now,
		log:         log,
	}
}

// Verify handles GET /webhooks/whatsapp, the subscription handshake.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if h.verifyToken == "" ||
		query.Get("hub.mode") != "subscribe" ||
		query.Get("hub.verify_token") != h.verifyToken {
		middleware.WriteError(w, http.StatusForbidden, "Verification failed")
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(query.Get("hub.challenge")))
}

// Receive handles POST /webhooks/whatsapp. Failures to record a single
// interaction are logged and the webhook is still acknowledged.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := r.Context()
	recorded := 0
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				userID := h.normalize(msg.From)
				if userID == "" {
					h.log.Debug().Str("from", msg.From).Msg("Ignoring message from unrecognised sender")
					continue
				}
				at := h.messageTime(msg.Timestamp)
				if err := h.tracker.RecordInteraction(ctx, userID, at); err != nil {
					h.log.Warn().Err(err).Str("recipient", userID).Msg("Failed to record interaction")
					continue
				}
				recorded++
			}
		}
	}

	if recorded > 0 {
		h.log.Info().Int("interactions", recorded).Msg("Recorded inbound interactions")
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]int{"recorded": recorded})
}

// messageTime parses the Unix timestamp WhatsApp sends as a string,
// defaulting to the current time.
func (h *WebhookHandler) messageTime(ts string) time.Time {
	secs, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || secs <= 0 {
		return h.now()
	}
	return time.Unix(secs, 0)
}

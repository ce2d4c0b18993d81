package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/padeliga/matchday/services"
)

// WebhookHandler is the inbound bridge: it normalizes free-text replies from
// the messaging channel into accept/decline and hands them to the engine.
type WebhookHandler struct {
	confirmationService services.ConfirmationService
}

func NewWebhookHandler(confirmationService services.ConfirmationService) *WebhookHandler {
	return &WebhookHandler{confirmationService: confirmationService}
}

func (h *WebhookHandler) HandleReply(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Phone string `json:"phone"`
		Text  string `json:"text"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.Phone == "" {
		badRequestResponse(w, r, errors.New("phone is required"))
		return
	}

	accept, ok := parseReply(input.Text)
	if !ok {
		badRequestResponse(w, r, errors.New("reply not understood, answer YES or NO"))
		return
	}

	outcome, err := h.confirmationService.HandleResponse(r.Context(), time.Now(), input.Phone, accept)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": outcome}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// parseReply maps a free-text reply to accept/decline. Unrecognized text is
// rejected rather than guessed at.
func parseReply(text string) (accept, ok bool) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "yes", "y", "si", "sí", "ok", "confirm", "1":
		return true, true
	case "no", "n", "cancel", "decline", "2":
		return false, true
	}
	return false, false
}

package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/padeliga/matchday/models"
	"github.com/padeliga/matchday/services"
)

type MatchHandler struct {
	matchService        services.MatchService
	matchmakingService  services.MatchmakingService
	confirmationService services.ConfirmationService
	cancellationService services.CancellationService
}

func NewMatchHandler(
	matchService services.MatchService,
	matchmakingService services.MatchmakingService,
	confirmationService services.ConfirmationService,
	cancellationService services.CancellationService,
) *MatchHandler {
	return &MatchHandler{
		matchService:        matchService,
		matchmakingService:  matchmakingService,
		confirmationService: confirmationService,
		cancellationService: cancellationService,
	}
}

func (h *MatchHandler) List(w http.ResponseWriter, r *http.Request) {
	var statuses []models.MatchStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		statuses = append(statuses, models.MatchStatus(raw))
	}

	matches, err := h.matchService.ListMatches(r.Context(), statuses...)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := matchIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.GetMatch(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) Join(w http.ResponseWriter, r *http.Request) {
	var input struct {
		PlayerID    int       `json:"player_id"`
		CourtID     int       `json:"court_id"`
		ScheduledAt time.Time `json:"scheduled_at"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.PlayerID <= 0 || input.CourtID <= 0 || input.ScheduledAt.IsZero() {
		badRequestResponse(w, r, errors.New("player_id, court_id and scheduled_at are required"))
		return
	}

	match, err := h.matchService.Join(r.Context(), time.Now(), input.PlayerID, input.CourtID, input.ScheduledAt)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) Leave(w http.ResponseWriter, r *http.Request) {
	id, err := matchIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		PlayerID int `json:"player_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.PlayerID <= 0 {
		badRequestResponse(w, r, errors.New("player_id is required"))
		return
	}

	outcome, err := h.matchService.Leave(r.Context(), time.Now(), id, input.PlayerID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": outcome}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RunMatchmaking triggers the daily grouping run on demand (admin only).
func (h *MatchHandler) RunMatchmaking(w http.ResponseWriter, r *http.Request) {
	var input struct {
		TargetDate string `json:"target_date"` // "2006-01-02", defaults to tomorrow
	}
	if r.ContentLength > 0 {
		if err := readJSON(w, r, &input); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}

	now := time.Now()
	targetDate := now.AddDate(0, 0, 1)
	if input.TargetDate != "" {
		parsed, err := time.ParseInLocation("2006-01-02", input.TargetDate, now.Location())
		if err != nil {
			badRequestResponse(w, r, errors.New("target_date must be formatted as YYYY-MM-DD"))
			return
		}
		targetDate = parsed
	}

	result, err := h.matchmakingService.RunDaily(r.Context(), now, targetDate)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RunScan triggers a confirmation scan on demand (admin only).
func (h *MatchHandler) RunScan(w http.ResponseWriter, r *http.Request) {
	result, err := h.confirmationService.Scan(r.Context(), time.Now())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Cancel closes a match with an explicit reason (admin only).
func (h *MatchHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := matchIDParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input struct {
		Reason string `json:"reason"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.GetMatch(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	reason := models.CancellationReason(input.Reason)
	if err := h.cancellationService.CancelMatch(r.Context(), match, reason); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func matchIDParam(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "matchID"))
	if err != nil || id <= 0 {
		return 0, errors.New("invalid match ID")
	}
	return id, nil
}

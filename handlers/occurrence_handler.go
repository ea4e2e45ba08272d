package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mrsorbate/KADR.app-sub000/services"
)

type OccurrenceHandler struct {
	occurrenceService services.OccurrenceService
	loc               *time.Location
}

func NewOccurrenceHandler(os services.OccurrenceService, loc *time.Location) *OccurrenceHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &OccurrenceHandler{occurrenceService: os, loc: loc}
}

// CreateOccurrence создаёт одиночное событие или серию.
func (h *OccurrenceHandler) CreateOccurrence(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.CreateOccurrenceInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	input.TeamID = teamID

	actorID, ok := currentUser(w, r)
	if !ok {
		return
	}

	result, err := h.occurrenceService.CreateOccurrence(r.Context(), actorID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *OccurrenceHandler) ListTeamOccurrences(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var from, to time.Time
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = parseTimeParam(v, h.loc); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = parseTimeParam(v, h.loc); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}

	actorID, ok := currentUser(w, r)
	if !ok {
		return
	}

	list, err := h.occurrenceService.ListTeamOccurrences(r.Context(), actorID, teamID, from, to)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"occurrences": list}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *OccurrenceHandler) GetOccurrence(w http.ResponseWriter, r *http.Request) {
	occurrenceID, err := getIDFromURL(r, "occurrenceID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actorID, ok := currentUser(w, r)
	if !ok {
		return
	}

	details, err := h.occurrenceService.GetOccurrence(r.Context(), actorID, occurrenceID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"occurrence": details}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateOccurrence: правка одного события, сдвиг серии (update_series) или перестройка (reshape_series).
func (h *OccurrenceHandler) UpdateOccurrence(w http.ResponseWriter, r *http.Request) {
	occurrenceID, err := getIDFromURL(r, "occurrenceID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.UpdateOccurrenceInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	actorID, ok := currentUser(w, r)
	if !ok {
		return
	}

	result, err := h.occurrenceService.UpdateOccurrence(r.Context(), actorID, occurrenceID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *OccurrenceHandler) DeleteOccurrence(w http.ResponseWriter, r *http.Request) {
	occurrenceID, err := getIDFromURL(r, "occurrenceID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	deleteSeries := false
	if v := r.URL.Query().Get("series"); v != "" {
		if deleteSeries, err = strconv.ParseBool(v); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}

	actorID, ok := currentUser(w, r)
	if !ok {
		return
	}

	result, err := h.occurrenceService.DeleteOccurrence(r.Context(), actorID, occurrenceID, deleteSeries)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

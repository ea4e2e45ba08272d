package handlers

import (
	"net/http"

	"github.com/mrsorbate/KADR.app-sub000/services"
)

type ResponseHandler struct {
	responseService services.ResponseService
}

func NewResponseHandler(rs services.ResponseService) *ResponseHandler {
	return &ResponseHandler{responseService: rs}
}

// SetResponse: участник отвечает за себя, тренер за любого участника.
func (h *ResponseHandler) SetResponse(w http.ResponseWriter, r *http.Request) {
	occurrenceID, err := getIDFromURL(r, "occurrenceID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.SetResponseInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	actorID, ok := currentUser(w, r)
	if !ok {
		return
	}

	response, err := h.responseService.SetResponse(r.Context(), actorID, occurrenceID, userID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"response": response}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *ResponseHandler) SyncNewMember(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, err := getIDFromURL(r, "userID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actorID, ok := currentUser(w, r)
	if !ok {
		return
	}

	added, err := h.responseService.AddMemberToFutureOccurrences(r.Context(), actorID, teamID, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"added": added}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

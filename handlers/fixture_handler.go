package handlers

import (
	"net/http"

	"github.com/mrsorbate/KADR.app-sub000/services"
)

type FixtureHandler struct {
	fixtureService services.FixtureService
}

func NewFixtureHandler(fs services.FixtureService) *FixtureHandler {
	return &FixtureHandler{fixtureService: fs}
}

// ImportFixtures запускает импорт вручную (только тренер).
func (h *FixtureHandler) ImportFixtures(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actorID, ok := currentUser(w, r)
	if !ok {
		return
	}

	summary, err := h.fixtureService.TriggerImport(r.Context(), actorID, teamID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"import": summary}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *FixtureHandler) LastImport(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actorID, ok := currentUser(w, r)
	if !ok {
		return
	}

	summary, err := h.fixtureService.LastImport(r.Context(), actorID, teamID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"import": summary}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *FixtureHandler) LeagueOverview(w http.ResponseWriter, r *http.Request) {
	teamID, err := getIDFromURL(r, "teamID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actorID, ok := currentUser(w, r)
	if !ok {
		return
	}

	overview, err := h.fixtureService.GetLeagueOverview(r.Context(), actorID, teamID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"league": overview}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/hairizuan-noorazman/scenario-runner/logger"
	"github.com/hairizuan-noorazman/scenario-runner/scenario"
)

// ScenarioHandler handles scenario CRUD requests.
type ScenarioHandler struct {
	store  scenario.Store
	logger logger.Logger
}

// NewScenarioHandler creates a new scenario handler.
func NewScenarioHandler(store scenario.Store, log logger.Logger) *ScenarioHandler {
	return &ScenarioHandler{store: store, logger: log}
}

// CreateScenarioRequest represents a scenario creation request.
type CreateScenarioRequest struct {
	Name     string         `json:"name" validate:"required,max=255"`
	StartURL string         `json:"startUrl" validate:"required,url"`
	Steps    scenario.Steps `json:"steps" validate:"required,min=1"`
}

// UpdateStepsRequest replaces a scenario's steps.
type UpdateStepsRequest struct {
	Steps scenario.Steps `json:"steps" validate:"required,min=1"`
}

// Create handles creating a new scenario.
func (h *ScenarioHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateScenarioRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	sc := &scenario.Scenario{
		Name:     req.Name,
		StartURL: req.StartURL,
		Steps:    req.Steps,
	}
	if err := sc.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.Create(r.Context(), sc); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create scenario")
		return
	}

	respondJSON(w, http.StatusCreated, sc)
}

// Get handles fetching a scenario by ID.
func (h *ScenarioHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "scenario")
	if !ok {
		return
	}

	sc, err := h.store.FetchByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, scenario.ErrScenarioNotFound) {
			respondError(w, http.StatusNotFound, "scenario not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get scenario")
		return
	}

	respondJSON(w, http.StatusOK, sc)
}

// List handles listing scenarios.
func (h *ScenarioHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	items, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list scenarios")
		return
	}

	respondJSON(w, http.StatusOK, NewPaginatedResponse(items, len(items), limit, offset))
}

// UpdateSteps handles replacing a scenario's steps, e.g. to clear cached locators.
func (h *ScenarioHandler) UpdateSteps(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDOrRespond(w, r, "id", "scenario")
	if !ok {
		return
	}

	var req UpdateStepsRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	if err := req.Steps.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.UpdateSteps(r.Context(), id, req.Steps); err != nil {
		if errors.Is(err, scenario.ErrScenarioNotFound) {
			respondError(w, http.StatusNotFound, "scenario not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to update scenario steps")
		return
	}

	respondSuccess(w, "steps updated")
}

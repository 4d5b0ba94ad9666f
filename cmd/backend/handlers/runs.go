package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/hairizuan-noorazman/scenario-runner/engine"
	"github.com/hairizuan-noorazman/scenario-runner/logger"
	"github.com/hairizuan-noorazman/scenario-runner/run"
	"github.com/hairizuan-noorazman/scenario-runner/scenario"
)

// Runner executes a scenario to completion.
type Runner interface {
	Run(ctx context.Context, req engine.Request) (*engine.Result, error)
}

// RunHandler triggers runs and serves their snapshots.
type RunHandler struct {
	runner    Runner
	runs      run.Store
	scenarios scenario.Store
	linker    *RunLinker
	logger    logger.Logger
}

// NewRunHandler creates a new run handler. linker may be nil to disable shared links.
func NewRunHandler(runner Runner, runs run.Store, scenarios scenario.Store, linker *RunLinker, log logger.Logger) *RunHandler {
	return &RunHandler{
		runner:    runner,
		runs:      runs,
		scenarios: scenarios,
		linker:    linker,
		logger:    log,
	}
}

// TriggerRequest starts a run. When TestID names a stored scenario, missing
// fields are taken from it and resolved locators are written back to it.
type TriggerRequest struct {
	Name     string         `json:"name" validate:"required"`
	StartURL string         `json:"startUrl" validate:"required,url"`
	Steps    scenario.Steps `json:"steps" validate:"required,min=1"`
	TestID   string         `json:"testId" validate:"omitempty,uuid"`
	Email    string         `json:"email" validate:"omitempty,email"`
	RunID    string         `json:"runId" validate:"omitempty,max=64"`
}

// Trigger runs a scenario and responds once it has finished.
func (h *RunHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req TriggerRequest
	if err := parseJSON(r, &req, h.logger); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var scenarioID uuid.UUID
	if req.TestID != "" {
		id, err := uuid.Parse(req.TestID)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid testId: must be a valid UUID")
			return
		}
		scenarioID = id
		if !h.fillFromStore(w, r, &req, id) {
			return
		}
	}

	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	// The run outlives a disconnected client.
	ctx := context.WithoutCancel(r.Context())
	result, err := h.runner.Run(ctx, engine.Request{
		RunID: req.RunID,
		Scenario: scenario.Scenario{
			ID:       scenarioID,
			Name:     req.Name,
			StartURL: req.StartURL,
			Steps:    req.Steps,
		},
		Email: req.Email,
	})
	if err != nil {
		if result != nil {
			respondJSON(w, http.StatusInternalServerError, result)
			return
		}
		if isRequestError(err) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error(r.Context(), "failed to start run", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "failed to start run")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// fillFromStore completes req from the stored scenario id. It reports false
// after writing an error response.
func (h *RunHandler) fillFromStore(w http.ResponseWriter, r *http.Request, req *TriggerRequest, id uuid.UUID) bool {
	if req.Name != "" && req.StartURL != "" && len(req.Steps) > 0 {
		return true
	}
	stored, err := h.scenarios.FetchByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, scenario.ErrScenarioNotFound) {
			respondError(w, http.StatusNotFound, "scenario not found")
			return false
		}
		respondError(w, http.StatusInternalServerError, "failed to load scenario")
		return false
	}
	if req.Name == "" {
		req.Name = stored.Name
	}
	if req.StartURL == "" {
		req.StartURL = stored.StartURL
	}
	if len(req.Steps) == 0 {
		req.Steps = stored.Steps
	}
	return true
}

// Get returns the persisted snapshot of a run.
func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.respondRun(w, r, mux.Vars(r)["run_id"])
}

// GetShared returns a run named by a signed link token.
func (h *RunHandler) GetShared(w http.ResponseWriter, r *http.Request) {
	if h.linker == nil {
		respondError(w, http.StatusNotFound, "shared links are disabled")
		return
	}
	runID, err := h.linker.RunID(mux.Vars(r)["token"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	h.respondRun(w, r, runID)
}

func isRequestError(err error) bool {
	for _, target := range []error{
		engine.ErrMissingScenario,
		scenario.ErrMissingStepField,
		scenario.ErrUnknownAction,
		scenario.ErrInvalidSteps,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (h *RunHandler) respondRun(w http.ResponseWriter, r *http.Request, runID string) {
	rn, err := h.runs.Get(r.Context(), runID)
	if err != nil {
		if errors.Is(err, run.ErrRunNotFound) {
			respondError(w, http.StatusNotFound, "run not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	respondJSON(w, http.StatusOK, rn)
}

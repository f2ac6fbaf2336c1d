/*
handlers.go - HTTP API handlers for the joint-cost engine

PURPOSE:
  Exposes the costing engine via REST API. Handles HTTP request/response,
  JSON serialization, persistence of runs and delegates every number to
  the costing package.

ENDPOINTS:
  Profiles:
    GET    /api/profiles               List built-in and stored profiles
    POST   /api/profiles               Store a profile from JSON
    GET    /api/profiles/{name}        Get one profile and its stage plan

  Cost runs:
    POST   /api/cost-runs              Run the pipeline and store the run
    GET    /api/cost-runs              Run history (?batch_id=, ?limit=)
    GET    /api/cost-runs/{id}         Stored input and result of one run

  Scenarios:
    POST   /api/scenarios/diff         What-if diff against an input or a stored run

  Demos:
    GET    /api/demos                  List demo batches
    POST   /api/demos/{id}/run         Run (and diff) a demo batch

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: profile and run persistence
  - Engine / Differ: the pure costing engine
  - Factories: JSON to engine record conversion
  - Builtin profiles: presets plus profiles loaded from the profiles file

REQUEST FLOW:
  1. Parse HTTP request
  2. Convert the document via factory (profiles resolved here)
  3. Run the engine
  4. Persist (cost runs only)
  5. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid documents, input validation, invalid routes, unknown profiles
  - 404: Resource not found
  - 409: Conflict (profile name taken by a built-in)
  - 422: Mass balance violation in a scenario diff
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - demos.go: Demo batch handlers
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/joint-cost-engine/costing"
	"github.com/warp/joint-cost-engine/factory"
	"github.com/warp/joint-cost-engine/store"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Config carries the handler's dependencies that are not the store.
type Config struct {
	Settings       costing.Settings
	RoundingPlaces int32
	Builtin        costing.ProfileSet // read-only after construction
	Logger         *zap.Logger
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    store.Store
	Engine   *costing.Engine
	Differ   *costing.ScenarioDiffEngine
	Profiles *factory.ProfileFactory
	Runs     *factory.RunFactory

	builtin costing.ProfileSet
	num     formatter
	log     *zap.Logger
	seq     atomic.Uint64
}

// NewHandler creates a new handler with the given store.
func NewHandler(st store.Store, cfg Config) *Handler {
	engine := costing.NewEngine(cfg.Settings)
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	builtin := cfg.Builtin
	if builtin == nil {
		builtin = costing.ProfileSet{}
	}
	return &Handler{
		Store:    st,
		Engine:   engine,
		Differ:   costing.NewScenarioDiffEngine(engine),
		Profiles: factory.NewProfileFactory(),
		Runs:     factory.NewRunFactory(),
		builtin:  builtin,
		num:      formatter{places: cfg.RoundingPlaces},
		log:      logger,
	}
}

// profileResolver looks up built-in profiles first, then stored ones.
type profileResolver struct {
	ctx context.Context
	h   *Handler
}

func (r profileResolver) Lookup(name string) (costing.BatchProfile, error) {
	if p, err := r.h.builtin.Lookup(name); err == nil {
		return p, nil
	}
	rec, err := r.h.Store.GetProfile(r.ctx, name)
	if err != nil {
		return costing.BatchProfile{}, err
	}
	if rec == nil {
		return costing.BatchProfile{}, fmt.Errorf("%w: %q", costing.ErrUnknownProfile, name)
	}
	return r.h.Profiles.ParseProfile(rec.ConfigJSON)
}

func (h *Handler) resolver(ctx context.Context) factory.ProfileResolver {
	return profileResolver{ctx: ctx, h: h}
}

// =============================================================================
// PROFILE HANDLERS
// =============================================================================

// ListProfiles returns built-in profiles followed by stored ones.
// GET /api/profiles
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.builtin))
	for name := range h.builtin {
		names = append(names, name)
	}
	sort.Strings(names)

	dtos := make([]ProfileDTO, 0, len(names))
	for _, name := range names {
		dtos = append(dtos, toProfileDTO(h.builtin[name], "builtin", 0, h.Profiles))
	}

	records, err := h.Store.ListProfiles(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to list profiles", err)
		return
	}
	for _, rec := range records {
		p, err := h.Profiles.ParseProfile(rec.ConfigJSON)
		if err != nil {
			h.log.Warn("skipping invalid stored profile", zap.String("profile", rec.Name), zap.Error(err))
			continue
		}
		dtos = append(dtos, toProfileDTO(p, "stored", rec.Version, h.Profiles))
	}

	writeJSON(w, http.StatusOK, dtos)
}

// GetProfile returns one profile.
// GET /api/profiles/{name}
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if p, ok := h.builtin[name]; ok {
		writeJSON(w, http.StatusOK, toProfileDTO(p, "builtin", 0, h.Profiles))
		return
	}

	rec, err := h.Store.GetProfile(r.Context(), name)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to get profile", err)
		return
	}
	if rec == nil {
		h.writeError(w, http.StatusNotFound, "Profile not found", nil)
		return
	}
	p, err := h.Profiles.ParseProfile(rec.ConfigJSON)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Stored profile is invalid", err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileDTO(p, "stored", rec.Version, h.Profiles))
}

// CreateProfile validates and stores a profile.
// POST /api/profiles
func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var pj factory.ProfileJSON
	if err := json.NewDecoder(r.Body).Decode(&pj); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p, err := h.Profiles.FromJSON(pj)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if _, ok := h.builtin[p.Name]; ok {
		h.writeError(w, http.StatusConflict, "Profile name is reserved by a built-in profile", nil)
		return
	}

	config, err := json.Marshal(h.Profiles.ToJSON(p))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to encode profile", err)
		return
	}
	if err := h.Store.SaveProfile(r.Context(), store.ProfileRecord{Name: p.Name, ConfigJSON: string(config)}); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to save profile", err)
		return
	}

	rec, err := h.Store.GetProfile(r.Context(), p.Name)
	if err != nil || rec == nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to reload profile", err)
		return
	}
	h.log.Info("profile saved", zap.String("profile", p.Name), zap.Int("version", rec.Version))
	writeJSON(w, http.StatusCreated, toProfileDTO(p, "stored", rec.Version, h.Profiles))
}

// =============================================================================
// COST RUN HANDLERS
// =============================================================================

// CreateCostRun runs the pipeline on one batch document and stores the run.
// POST /api/cost-runs
func (h *Handler) CreateCostRun(w http.ResponseWriter, r *http.Request) {
	var rj factory.RunInputJSON
	if err := json.NewDecoder(r.Body).Decode(&rj); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in, err := h.Runs.FromJSON(rj, h.resolver(r.Context()))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	dto, err := h.runAndStore(r.Context(), in)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto)
}

// runAndStore runs the engine and appends the run to the store.
func (h *Handler) runAndStore(ctx context.Context, in costing.PipelineInput) (CostRunDTO, error) {
	res, err := h.Engine.Run(in)
	if err != nil {
		return CostRunDTO{}, err
	}

	input, err := json.Marshal(h.Runs.ToJSON(in))
	if err != nil {
		return CostRunDTO{}, fmt.Errorf("encode input: %w", err)
	}
	result, err := json.Marshal(h.num.result(res))
	if err != nil {
		return CostRunDTO{}, fmt.Errorf("encode result: %w", err)
	}

	rec := store.RunRecord{
		ID:           h.newRunID(),
		BatchID:      res.BatchID,
		Profile:      res.Profile,
		WarningCount: len(res.Warnings),
		InputJSON:    string(input),
		ResultJSON:   string(result),
		CreatedAt:    time.Now().UTC(),
	}
	if res.Level3 != nil {
		rec.KFactor = res.Level3.KFactor
	}
	if err := h.Store.SaveRun(ctx, rec); err != nil {
		return CostRunDTO{}, fmt.Errorf("save run: %w", err)
	}

	h.log.Info("cost run",
		zap.String("run_id", rec.ID),
		zap.String("batch_id", rec.BatchID),
		zap.String("profile", rec.Profile),
		zap.String("k_factor", rec.KFactor.StringFixed(4)),
		zap.Int("warnings", rec.WarningCount),
	)
	return h.toCostRunDTO(rec), nil
}

func (h *Handler) newRunID() string {
	return fmt.Sprintf("run-%d-%d", time.Now().UnixNano(), h.seq.Add(1))
}

// ListCostRuns returns the run history, newest first.
// GET /api/cost-runs?batch_id=B-1&limit=20
func (h *Handler) ListCostRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{BatchID: r.URL.Query().Get("batch_id")}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			h.writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		filter.Limit = limit
	}

	runs, err := h.Store.ListRuns(r.Context(), filter)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to list cost runs", err)
		return
	}

	dtos := make([]CostRunSummaryDTO, len(runs))
	for i, rec := range runs {
		dtos[i] = h.toSummaryDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCostRun returns one stored run.
// GET /api/cost-runs/{id}
func (h *Handler) GetCostRun(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to get cost run", err)
		return
	}
	if rec == nil {
		h.writeError(w, http.StatusNotFound, "Cost run not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, h.toCostRunDTO(*rec))
}

func (h *Handler) toSummaryDTO(rec store.RunRecord) CostRunSummaryDTO {
	return CostRunSummaryDTO{
		ID:           rec.ID,
		BatchID:      rec.BatchID,
		Profile:      rec.Profile,
		KFactor:      h.num.dec(rec.KFactor),
		WarningCount: rec.WarningCount,
		CreatedAt:    rec.CreatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) toCostRunDTO(rec store.RunRecord) CostRunDTO {
	return CostRunDTO{
		CostRunSummaryDTO: h.toSummaryDTO(rec),
		Input:             json.RawMessage(rec.InputJSON),
		Result:            json.RawMessage(rec.ResultJSON),
	}
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// DiffScenario compares a baseline batch with an edited copy.
// POST /api/scenarios/diff
func (h *Handler) DiffScenario(w http.ResponseWriter, r *http.Request) {
	var req ScenarioDiffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	baseline, status, err := h.scenarioBaseline(r.Context(), req)
	if err != nil {
		if status != 0 {
			h.writeError(w, status, "Baseline not available", err)
			return
		}
		h.writeEngineError(w, err)
		return
	}

	diff, err := h.Differ.Diff(r.Context(), baseline, h.Runs.ScenarioChanges(req.Changes))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	h.log.Info("scenario diff",
		zap.String("batch_id", baseline.Batch.BatchID),
		zap.String("label", diff.Label),
		zap.Int("deltas", len(diff.Deltas)),
	)
	writeJSON(w, http.StatusOK, h.num.scenario(diff))
}

// scenarioBaseline returns a non-zero status for errors that are not engine errors.
func (h *Handler) scenarioBaseline(ctx context.Context, req ScenarioDiffRequest) (costing.PipelineInput, int, error) {
	switch {
	case req.Input != nil && req.BaselineRunID != "":
		return costing.PipelineInput{}, http.StatusBadRequest, errors.New("give either input or baseline_run_id, not both")
	case req.Input != nil:
		in, err := h.Runs.FromJSON(*req.Input, h.resolver(ctx))
		return in, 0, err
	case req.BaselineRunID != "":
		rec, err := h.Store.GetRun(ctx, req.BaselineRunID)
		if err != nil {
			return costing.PipelineInput{}, http.StatusInternalServerError, err
		}
		if rec == nil {
			return costing.PipelineInput{}, http.StatusNotFound, fmt.Errorf("cost run %q not found", req.BaselineRunID)
		}
		in, err := h.Runs.ParseRunInput(rec.InputJSON, h.resolver(ctx))
		return in, 0, err
	default:
		return costing.PipelineInput{}, http.StatusBadRequest, errors.New("input or baseline_run_id is required")
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	if status >= http.StatusInternalServerError {
		h.log.Error(message, zap.Error(err))
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps engine and factory errors to HTTP statuses.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	status, code := classifyError(err)
	resp := ErrorResponse{Error: err.Error(), Code: code}

	var ive *costing.InputValidationError
	var mbv *costing.MassBalanceViolation
	var re *costing.RouteError
	switch {
	case errors.As(err, &mbv):
		resp.Details = map[string]any{
			"label":        mbv.Label,
			"griller_kg":   mbv.GrillerKg.String(),
			"accounted_kg": mbv.AccountedKg.String(),
			"deviation_kg": mbv.DeviationKg.String(),
			"tolerance_kg": mbv.ToleranceKg.String(),
			"parts":        mbv.Parts,
		}
	case errors.As(err, &ive):
		resp.Details = map[string]any{"stage": string(ive.Stage), "field": ive.Field, "reason": ive.Reason}
	case errors.As(err, &re):
		resp.Details = map[string]any{"route_id": re.RouteID}
	}

	if status >= http.StatusInternalServerError {
		h.log.Error("engine error", zap.Error(err))
	} else {
		h.log.Warn("rejected input", zap.String("code", code), zap.Error(err))
	}
	writeJSON(w, status, resp)
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, costing.ErrMassBalanceViolation):
		return http.StatusUnprocessableEntity, "mass_balance_violation"
	case errors.Is(err, costing.ErrUnknownProfile):
		return http.StatusBadRequest, "unknown_profile"
	case errors.Is(err, costing.ErrRouteCycle):
		return http.StatusBadRequest, "route_cycle"
	case errors.Is(err, costing.ErrInvalidRoute):
		return http.StatusBadRequest, "invalid_route"
	case errors.Is(err, costing.ErrArithmeticDegenerate):
		return http.StatusBadRequest, "arithmetic_degenerate"
	case costing.IsClientError(err):
		return http.StatusBadRequest, "input_validation"
	case errors.Is(err, factory.ErrInvalidDocument):
		return http.StatusBadRequest, "invalid_document"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

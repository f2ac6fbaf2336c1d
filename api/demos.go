/*
demos.go - Demo batch handlers

PURPOSE:
  Runs the poultry demo batches through the same path as a real cost run,
  so a fresh install has a history to look at and the numbers of the
  reference batch can be checked in a browser.

AVAILABLE DEMOS:
  See poultry/demo.go. Each demo builds a complete PipelineInput; demos that
  carry a scenario also return the what-if diff.

USAGE VIA API:
  GET  /api/demos
  POST /api/demos/worked-example/run

NOTE:
  Every demo run is stored as a normal cost run. Run history is append-only,
  so running a demo twice creates two runs.

SEE ALSO:
  - poultry/demo.go: Demo definitions
  - handlers.go: runAndStore
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/joint-cost-engine/poultry"
)

// ListDemos returns the available demo batches.
// GET /api/demos
func (h *Handler) ListDemos(w http.ResponseWriter, r *http.Request) {
	demos := poultry.Demos()
	dtos := make([]DemoDTO, len(demos))
	for i, d := range demos {
		dtos[i] = toDemoDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RunDemo runs and stores a demo batch.
// POST /api/demos/{id}/run
func (h *Handler) RunDemo(w http.ResponseWriter, r *http.Request) {
	demo, ok := poultry.FindDemo(chi.URLParam(r, "id"))
	if !ok {
		h.writeError(w, http.StatusNotFound, "Demo not found", nil)
		return
	}

	in := demo.Build()
	run, err := h.runAndStore(r.Context(), in)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	resp := DemoRunDTO{Demo: toDemoDTO(demo), Run: run}
	if demo.Scenario != nil {
		diff, err := h.Differ.Diff(r.Context(), in, *demo.Scenario)
		if err != nil {
			h.writeEngineError(w, err)
			return
		}
		dto := h.num.scenario(diff)
		resp.Scenario = &dto
	}
	writeJSON(w, http.StatusOK, resp)
}

func toDemoDTO(d poultry.Demo) DemoDTO {
	return DemoDTO{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Profile:     d.Build().Profile.Name,
		HasScenario: d.Scenario != nil,
	}
}

package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/albapepper/scoracle-canon/internal/api/respond"
	"github.com/albapepper/scoracle-canon/internal/player"
)

var reviewKinds = map[string]bool{
	player.ReviewFieldConflict:  true,
	player.ReviewNameCollision:  true,
	player.ReviewAmbiguousName:  true,
	player.ReviewScaleStillHigh: true,
}

// GetCorrections returns the latest run's correction audit.
// @Summary Get correction audit
// @Description Returns the scale corrections of the most recently published run, with original and corrected values so each can be reversed.
// @Tags audit
// @Produce json
// @Param id query string false "Only corrections for this canonical ID"
// @Param limit query int false "Maximum results (1-1000)" default(100)
// @Success 200 {array} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /audit/corrections [get]
func (h *Handler) GetCorrections(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id != "" {
		parsed, err := player.ParseCanonicalID(id)
		if err != nil {
			respond.InvalidID(w, "id", id, err)
			return
		}
		id = parsed.String()
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	h.serveCached(w, r, fmt.Sprintf("corrections:%s:%d", id, limit), h.logTTL(), id, "no published run",
		func(ctx context.Context) ([]byte, error) { return h.store.Corrections(ctx, id, limit) })
}

// GetReview returns the latest run's manual review items.
// @Summary Get manual review items
// @Description Returns the items of the most recently published run that need a human decision: field conflicts, name collisions, ambiguous names and values still high after scale correction.
// @Tags audit
// @Produce json
// @Param kind query string false "Review kind" Enums(field_conflict, name_collision, ambiguous_name, scale_still_high)
// @Param limit query int false "Maximum results (1-1000)" default(100)
// @Success 200 {array} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /review [get]
func (h *Handler) GetReview(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind != "" && !reviewKinds[kind] {
		respond.InvalidParam(w, "kind", "unknown review kind "+kind)
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	h.serveCached(w, r, fmt.Sprintf("review:%s:%d", kind, limit), h.logTTL(), "", "no published run",
		func(ctx context.Context) ([]byte, error) { return h.store.Review(ctx, kind, limit) })
}

// GetLatestRun returns the most recently published pipeline run.
// @Summary Get latest run
// @Description Returns the id, timing, snapshot list and summary counts of the most recently published run.
// @Tags audit
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} respond.ErrorResponse
// @Router /runs/latest [get]
func (h *Handler) GetLatestRun(w http.ResponseWriter, r *http.Request) {
	h.serveCached(w, r, "run:latest", h.logTTL(), "", "no published run", h.store.LatestRun)
}

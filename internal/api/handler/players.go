package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/albapepper/scoracle-canon/internal/api/respond"
	"github.com/albapepper/scoracle-canon/internal/cache"
	"github.com/albapepper/scoracle-canon/internal/player"
)

// minSearchLen is the shortest name fragment a search accepts.
const minSearchLen = 2

// GetPlayer returns one canonical player record.
// @Summary Get canonical player
// @Description Returns the canonical record for a player, every field with the source snapshot that contributed it. Synthetic ids have the form name:<hex>.
// @Tags players
// @Produce json
// @Param id path string true "Canonical ID"
// @Success 200 {object} map[string]interface{}
// @Success 304
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /players/{id} [get]
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	id, ok := canonicalIDParam(w, r)
	if !ok {
		return
	}
	h.serveCached(w, r, "player:"+id.String(), cache.TTLPlayer,
		id.String(), "no canonical player "+id.String()+" in the published dataset",
		func(ctx context.Context) ([]byte, error) { return h.store.Player(ctx, id) })
}

// GetPlayerStints returns a player's career stints.
// @Summary Get career stints
// @Description Returns the career stints parsed from the player's club history, in source order.
// @Tags players
// @Produce json
// @Param id path string true "Canonical ID"
// @Success 200 {array} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /players/{id}/stints [get]
func (h *Handler) GetPlayerStints(w http.ResponseWriter, r *http.Request) {
	id, ok := canonicalIDParam(w, r)
	if !ok {
		return
	}
	h.serveCached(w, r, "stints:"+id.String(), cache.TTLPlayer,
		id.String(), "no canonical player "+id.String()+" in the published dataset",
		func(ctx context.Context) ([]byte, error) { return h.store.Stints(ctx, id) })
}

// SearchPlayers finds players by name.
// @Summary Search players by name
// @Description Case-insensitive substring search over canonical player names.
// @Tags players
// @Produce json
// @Param name query string true "Name fragment (at least 2 characters)"
// @Param limit query int false "Maximum results (1-1000)" default(100)
// @Success 200 {array} map[string]interface{}
// @Failure 400 {object} respond.ErrorResponse
// @Router /players [get]
func (h *Handler) SearchPlayers(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		respond.MissingParam(w, "name")
		return
	}
	if len([]rune(name)) < minSearchLen {
		respond.InvalidParam(w, "name", fmt.Sprintf("name must be at least %d characters", minSearchLen))
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	key := fmt.Sprintf("search:%s:%d", strings.ToLower(name), limit)
	h.serveCached(w, r, key, cache.TTLSearch, "", "no players found",
		func(ctx context.Context) ([]byte, error) { return h.store.SearchPlayers(ctx, name, limit) })
}

func canonicalIDParam(w http.ResponseWriter, r *http.Request) (player.CanonicalID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := player.ParseCanonicalID(raw)
	if err != nil {
		respond.InvalidID(w, "id", raw, err)
		return player.CanonicalID{}, false
	}
	return id, true
}

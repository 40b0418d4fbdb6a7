package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/netrules-core/internal/controller"
	"github.com/nerrad567/netrules-core/internal/coordinator"
	"github.com/nerrad567/netrules-core/internal/history"
	"github.com/nerrad567/netrules-core/internal/rules"
)

// handleStatus returns the coordinator and polling state.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.Status())
}

// handleRefresh signals an external change so the next poll cycle runs
// immediately (after debounce).
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.coord.RegisterExternalChange(r.Context())
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "refresh scheduled",
	})
}

// kindSummary is one entry in the rule-collection listing.
type kindSummary struct {
	Kind       rules.Kind `json:"kind"`
	ChangeType string     `json:"change_type"`
	Entities   int        `json:"entities"`
}

// handleListKinds lists every recognised rule collection with the number
// of cached entities in each.
func (s *Server) handleListKinds(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.coord.Snapshot()

	kinds := rules.AllKinds()
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	summaries := make([]kindSummary, 0, len(kinds))
	for _, kind := range kinds {
		summaries = append(summaries, kindSummary{
			Kind:       kind,
			ChangeType: rules.ChangeType(kind),
			Entities:   len(snapshot[kind]),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"kinds": summaries,
	})
}

// entityRecord is one entity in a collection listing.
type entityRecord struct {
	EntityID string         `json:"entity_id"`
	Fields   rules.FieldMap `json:"fields"`
}

// handleListEntities lists the cached entities of one collection,
// synthetic children included.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	kind := rules.Kind(chi.URLParam(r, "kind"))
	if !rules.KnownKind(kind) {
		writeNotFound(w, "unknown rule collection: "+string(kind))
		return
	}

	snapshot := s.coord.Snapshot()
	if snapshot == nil {
		writeUnavailable(w, "no controller data cached yet")
		return
	}

	bucket := snapshot[kind]
	records := make([]entityRecord, 0, len(bucket))
	for id, fields := range bucket {
		records = append(records, entityRecord{EntityID: id, Fields: fields})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].EntityID < records[j].EntityID })

	writeJSON(w, http.StatusOK, map[string]any{
		"kind":     kind,
		"entities": records,
	})
}

// handleGetEntity returns one cached entity by id.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	kind := rules.Kind(chi.URLParam(r, "kind"))
	if !rules.KnownKind(kind) {
		writeNotFound(w, "unknown rule collection: "+string(kind))
		return
	}

	snapshot := s.coord.Snapshot()
	if snapshot == nil {
		writeUnavailable(w, "no controller data cached yet")
		return
	}

	id := chi.URLParam(r, "id")
	fields, ok := snapshot[kind][id]
	if !ok {
		writeNotFound(w, "entity not found: "+id)
		return
	}

	writeJSON(w, http.StatusOK, entityRecord{EntityID: id, Fields: fields})
}

// setEnabledRequest is the request body for PUT /rules/{kind}/{id}/enabled.
type setEnabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleSetEnabled toggles an entity's enabled state on the controller.
// Synthetic child ids are accepted and translated to the parent write.
func (s *Server) handleSetEnabled(w http.ResponseWriter, r *http.Request) {
	kind := rules.Kind(chi.URLParam(r, "kind"))
	id := chi.URLParam(r, "id")

	var req setEnabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Enabled == nil {
		writeBadRequest(w, "enabled field is required")
		return
	}

	err := s.coord.SetRuleEnabled(r.Context(), kind, id, *req.Enabled)
	switch {
	case err == nil:
	case errors.Is(err, coordinator.ErrUnknownKind):
		writeBadRequest(w, err.Error())
		return
	case errors.Is(err, controller.ErrNotFound):
		writeNotFound(w, "entity not found: "+id)
		return
	case errors.Is(err, controller.ErrKindNotSupported):
		writeBadRequest(w, err.Error())
		return
	default:
		s.logger.Error("toggle failed", "kind", kind, "entity_id", id, "error", err)
		writeInternalError(w, "controller write failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entity_id": id,
		"enabled":   *req.Enabled,
	})
}

// handleListChanges returns the persisted change-event history, filtered
// by the entity_id, type, action, limit, and offset query parameters.
func (s *Server) handleListChanges(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeUnavailable(w, "change history is not configured")
		return
	}

	filter := history.Filter{
		EntityID: r.URL.Query().Get("entity_id"),
		Type:     r.URL.Query().Get("type"),
		Action:   rules.Action(r.URL.Query().Get("action")),
	}

	var err error
	if filter.Limit, err = parseIntParam(r, "limit"); err != nil {
		writeBadRequest(w, "limit must be an integer")
		return
	}
	if filter.Offset, err = parseIntParam(r, "offset"); err != nil {
		writeBadRequest(w, "offset must be an integer")
		return
	}

	result, err := s.events.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("change history query failed", "error", err)
		writeInternalError(w, "failed to query change history")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// parseIntParam reads an optional non-negative integer query parameter.
func parseIntParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, errors.New("invalid " + name)
	}
	return value, nil
}

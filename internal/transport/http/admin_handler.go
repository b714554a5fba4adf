package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"redlight-quiz/internal/domain"
	"redlight-quiz/internal/store"
)

// AdminHandler is the proctoring control surface: it owns the light toggle
// and the per-player eligibility flags. It produces exactly the records
// the player sessions consume; running sessions observe the light within
// one poll interval but re-read eligibility only at their own start.
type AdminHandler struct {
	store store.RecordStore
	light *store.LightAccessor
}

func NewAdminHandler(rs store.RecordStore) *AdminHandler {
	return &AdminHandler{store: rs, light: store.NewLightAccessor(rs)}
}

type playerView struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Attempted bool   `json:"attempted"`
	Moved     bool   `json:"moved"`
	Score     int    `json:"score"`
}

type lightRequest struct {
	Light bool `json:"light"`
}

type lightView struct {
	Light bool `json:"light"`
}

// ListPlayers returns a read-only snapshot of all player records.
func (h *AdminHandler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := store.ListPlayers(r.Context(), h.store)
	if err != nil {
		log.Printf("list players failed: %v", err)
		http.Error(w, "store unavailable", http.StatusBadGateway)
		return
	}
	views := make([]playerView, 0, len(players))
	for _, p := range players {
		views = append(views, playerView{
			ID:        p.ID,
			Username:  p.Username,
			Attempted: p.Attempted,
			Moved:     p.Moved,
			Score:     p.Score,
		})
	}
	writeJSON(w, views)
}

// GetLight reports the current light value, lazily creating the singleton.
func (h *AdminHandler) GetLight(w http.ResponseWriter, r *http.Request) {
	on, err := h.light.Read(r.Context())
	if err != nil {
		log.Printf("light read failed: %v", err)
		http.Error(w, "store unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, lightView{Light: on})
}

// SetLight overwrites the singleton light record. The write is idempotent;
// all active pollers observe it within one polling interval.
func (h *AdminHandler) SetLight(w http.ResponseWriter, r *http.Request) {
	var req lightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := h.light.Write(r.Context(), req.Light); err != nil {
		log.Printf("light write failed: %v", err)
		http.Error(w, "store unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, lightView{Light: req.Light})
}

// ResetPlayer clears the attempted and moved flags, enabling a new run.
func (h *AdminHandler) ResetPlayer(w http.ResponseWriter, r *http.Request) {
	h.updatePlayer(w, r, store.Fields{"attempted": false, "moved": false, "score": 0})
}

// Disqualify force-sets moved, which blocks the player's next session at
// its start-time eligibility check.
func (h *AdminHandler) Disqualify(w http.ResponseWriter, r *http.Request) {
	h.updatePlayer(w, r, store.Fields{"moved": true})
}

func (h *AdminHandler) updatePlayer(w http.ResponseWriter, r *http.Request, fields store.Fields) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "missing player id", http.StatusBadRequest)
		return
	}
	rec, err := h.store.Update(r.Context(), store.CollectionPlayers, id, fields)
	if errors.Is(err, domain.ErrRecordNotFound) {
		http.Error(w, "player not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("player update failed for %s: %v", id, err)
		http.Error(w, "store unavailable", http.StatusBadGateway)
		return
	}
	p := domain.PlayerFromFields(rec.ID, rec.Fields)
	writeJSON(w, playerView{ID: p.ID, Username: p.Username, Attempted: p.Attempted, Moved: p.Moved, Score: p.Score})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

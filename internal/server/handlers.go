package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/otakuflix/adata/pkg/catalog"
	"github.com/otakuflix/adata/pkg/pipeline"
)

// handleCatalog serves the canonical document. The store version doubles as
// the ETag.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	c, version, err := s.Store.Read(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	etag := strconv.Quote(string(version))
	if version != "" && r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	body, err := c.Encode()
	if err != nil {
		s.fail(w, err)
		return
	}
	if version != "" {
		w.Header().Set("ETag", etag)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func (s *Server) handleEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	c, _, err := s.Store.Read(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	e, ok := c.ByID()[id]
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, e)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	c, _, err := s.Store.Read(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, statsResponse(c))
}

type stats struct {
	Entries     int            `json:"entries"`
	MinID       int            `json:"min_id"`
	MaxID       int            `json:"max_id"`
	PerProvider map[string]int `json:"per_provider"`
	NoPoster    int            `json:"no_poster"`
	NoBanner    int            `json:"no_banner"`
	NoRating    int            `json:"no_rating"`
	NoStats     int            `json:"no_stats"`
	NotFinished int            `json:"not_finished"`
}

func statsResponse(c catalog.Catalog) stats {
	s := pipeline.Summarize(c)
	return stats{
		Entries:     s.Entries,
		MinID:       s.MinID,
		MaxID:       s.MaxID,
		PerProvider: s.PerProvider,
		NoPoster:    s.NoPoster,
		NoBanner:    s.NoBanner,
		NoRating:    s.NoRating,
		NoStats:     s.NoStats,
		NotFinished: s.NotFinished,
	}
}

type change struct {
	OccurredAt string `json:"occurred_at"`
	ID         int    `json:"aid"`
	Name       string `json:"name"`
	ChangeType string `json:"change_type"`
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	cl, ok := s.Store.(ChangeLister)
	if !ok {
		http.Error(w, "this store keeps no change log", http.StatusNotImplemented)
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	changes, err := cl.ListRecentChanges(r.Context(), limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	out := make([]change, 0, len(changes))
	for _, c := range changes {
		out = append(out, change{
			OccurredAt: c.OccurredAt.UTC().Format("2006-01-02T15:04:05Z"),
			ID:         c.ID,
			Name:       c.Name,
			ChangeType: c.ChangeType,
		})
	}
	writeJSON(w, out)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	s.Log.Errorf("Request failed: %v", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

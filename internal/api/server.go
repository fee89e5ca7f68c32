// Package api serves read-only lookups over persisted resolution runs.
package api

import (
	"encoding/json"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/telco-insight/family-cli/internal/model"
	"github.com/telco-insight/family-cli/internal/store"
)

// Server exposes runs, families and subscriber lookups over HTTP.
type Server struct {
	store store.Store
}

// New creates a Server over the given store.
func New(st store.Store) *Server {
	return &Server{store: st}
}

// Router builds the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/{runID}", s.handleGetRun)
	r.Get("/runs/{runID}/families", s.handleListFamilies)
	r.Get("/runs/{runID}/families/{familyID}", s.handleGetFamily)
	r.Get("/runs/{runID}/subscribers/{subscriberID}", s.handleGetSubscriber)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{
		Status: model.RunStatus(r.URL.Query().Get("status")),
		Limit:  50,
	}
	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		serverError(w, "list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		notFound(w, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListFamilies(w http.ResponseWriter, r *http.Request) {
	families, err := s.store.ListFamilies(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		serverError(w, "list families", err)
		return
	}
	writeJSON(w, http.StatusOK, families)
}

// handleGetFamily returns one family's members and, when present, its
// profile.
func (s *Server) handleGetFamily(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	familyID := chi.URLParam(r, "familyID")

	members, err := s.store.GetFamilyMembers(r.Context(), runID, familyID)
	if err != nil {
		serverError(w, "get family members", err)
		return
	}
	if len(members) == 0 {
		notFound(w, "family not found")
		return
	}
	profile, err := s.store.GetFamilyProfile(r.Context(), runID, familyID)
	if err != nil {
		serverError(w, "get family profile", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"family_id": familyID,
		"members":   members,
		"profile":   profileJSON(profile),
	})
}

// profilePayload renders missing means as null; encoding/json rejects NaN.
type profilePayload struct {
	FamilyID  string             `json:"family_id"`
	Size      int                `json:"size"`
	ARPUMean  *float64           `json:"arpu_mean"`
	DOUMean   *float64           `json:"dou_mean"`
	MOUMean   *float64           `json:"mou_mean"`
	AgeMean   *float64           `json:"age_mean"`
	FlagMeans map[string]float64 `json:"flag_means,omitempty"`
}

func profileJSON(p *model.FamilyProfile) *profilePayload {
	if p == nil {
		return nil
	}
	return &profilePayload{
		FamilyID:  p.FamilyID,
		Size:      p.Size,
		ARPUMean:  floatOrNull(p.ARPUMean),
		DOUMean:   floatOrNull(p.DOUMean),
		MOUMean:   floatOrNull(p.MOUMean),
		AgeMean:   floatOrNull(p.AgeMean),
		FlagMeans: p.FlagMeans,
	}
}

func floatOrNull(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func (s *Server) handleGetSubscriber(w http.ResponseWriter, r *http.Request) {
	member, err := s.store.GetSubscriberFamily(r.Context(), chi.URLParam(r, "runID"), chi.URLParam(r, "subscriberID"))
	if err != nil {
		serverError(w, "get subscriber family", err)
		return
	}
	if member == nil {
		notFound(w, "subscriber not found")
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": msg})
}

func serverError(w http.ResponseWriter, action string, err error) {
	zap.L().Error("api: "+action, zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": action + " failed"})
}

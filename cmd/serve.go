package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadscope/internal/enrich"
	"github.com/sells-group/leadscope/internal/lifecycle"
	"github.com/sells-group/leadscope/internal/model"
	"github.com/sells-group/leadscope/internal/recommend"
	"github.com/sells-group/leadscope/internal/scoring"
	"github.com/sells-group/leadscope/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scoring HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "serve: migrate store")
		}

		thresholds, err := loadThresholds()
		if err != nil {
			return err
		}

		// Provider-driven enrichment is only wired up when a places key is
		// configured; the scoring endpoints work without one.
		var enricher *enrich.Enricher
		if cfg.Places.Key != "" {
			enricher, err = initEnricher(st)
			if err != nil {
				return err
			}
		} else {
			zap.L().Warn("no places key configured, POST /v1/enrich disabled")
		}

		a := &api{
			store:      st,
			manager:    lifecycle.NewManager(st),
			enricher:   enricher,
			thresholds: thresholds,
			baseCtx:    ctx,
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(a),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "serve: listen")
		}

		return nil
	},
}

type api struct {
	store      store.Store
	manager    *lifecycle.Manager
	enricher   *enrich.Enricher
	thresholds recommend.Thresholds

	// baseCtx outlives individual requests; async enrichment runs under it
	// so a closed client connection does not cancel the run.
	baseCtx context.Context
}

func newRouter(a *api) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/scores", a.handleScores)
		r.Post("/opportunity", a.handleOpportunity)
		r.Post("/recommendations", a.handleRecommendations)
		r.Post("/enrich", a.handleEnrich)

		r.Get("/profiles", a.handleListProfiles)
		r.Get("/profiles/{id}", a.handleGetProfile)
		r.Delete("/profiles/{id}", a.handleDeleteProfile)

		r.Route("/pipeline", func(r chi.Router) {
			r.Post("/", a.handleAddItem)
			r.Get("/", a.handleListItems)
			r.Get("/{id}", a.handleGetItem)
			r.Post("/{id}/status", a.handleTransition)
			r.Get("/{id}/history", a.handleHistory)
			r.Delete("/{id}", a.handleRemoveItem)
		})
	})

	return r
}

// -- scoring endpoints --

func (a *api) handleScores(w http.ResponseWriter, r *http.Request) {
	signals, ok := decodeSignals(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, scoring.ComputeScores(signals))
}

func (a *api) handleOpportunity(w http.ResponseWriter, r *http.Request) {
	signals, ok := decodeSignals(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, scoring.ComputeOpportunity(signals))
}

func (a *api) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	signals, ok := decodeSignals(w, r)
	if !ok {
		return
	}
	scores := scoring.ComputeScores(signals)
	recs := recommend.Generate(signals, scores, a.thresholds)
	writeJSON(w, http.StatusOK, map[string]any{"recommendations": recs})
}

func decodeSignals(w http.ResponseWriter, r *http.Request) (*model.BusinessSignals, bool) {
	var signals model.BusinessSignals
	if err := json.NewDecoder(r.Body).Decode(&signals); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	return &signals, true
}

// -- enrichment --

func (a *api) handleEnrich(w http.ResponseWriter, r *http.Request) {
	if a.enricher == nil {
		writeError(w, http.StatusServiceUnavailable, "enrichment providers are not configured")
		return
	}

	var req enrich.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" && req.Domain == "" {
		writeError(w, http.StatusBadRequest, "name or domain is required")
		return
	}

	// Run enrichment asynchronously
	go func() {
		profile, err := a.enricher.Enrich(a.baseCtx, req)
		if err != nil {
			zap.L().Error("async enrichment failed",
				zap.String("domain", req.Domain),
				zap.String("name", req.Name),
				zap.Error(err),
			)
			return
		}
		zap.L().Info("async enrichment complete",
			zap.String("domain", profile.Domain),
			zap.Int("lead_score", profile.Scores.Lead),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"domain": req.Domain,
		"name":   req.Name,
	})
}

// -- profiles --

func (a *api) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ProfileFilter{
		Domain:         q.Get("domain"),
		MinLeadScore:   queryInt(q.Get("min_lead")),
		MinOpportunity: queryInt(q.Get("min_opportunity")),
		RankByLead:     q.Get("by_lead") == "true",
		Limit:          queryInt(q.Get("limit")),
		Offset:         queryInt(q.Get("offset")),
	}

	profiles, err := a.store.ListProfiles(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": profiles})
}

func (a *api) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	profile, err := a.store.GetProfile(r.Context(), id)
	if eris.Is(err, store.ErrNotFound) {
		profile, err = a.store.GetProfileByDomain(r.Context(), id)
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (a *api) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DeleteProfile(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// -- pipeline --

func (a *api) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProfileID string         `json:"profile_id"`
		ItemType  model.ItemType `json:"item_type"`
		Priority  model.Priority `json:"priority"`
		Notes     string         `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProfileID == "" {
		writeError(w, http.StatusBadRequest, "profile_id is required")
		return
	}

	item, err := a.manager.Add(r.Context(), req.ProfileID, req.ItemType, req.Priority, req.Notes)
	if err != nil {
		if eris.Is(err, lifecycle.ErrInvalidTransition) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (a *api) handleListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ItemFilter{
		ItemType: model.ItemType(q.Get("type")),
		Status:   model.Status(q.Get("status")),
		Priority: model.Priority(q.Get("priority")),
		Limit:    queryInt(q.Get("limit")),
		Offset:   queryInt(q.Get("offset")),
	}

	items, err := a.store.ListItems(r.Context(), filter)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *api) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, err := a.store.GetItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *api) handleTransition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status model.Status         `json:"status"`
		Note   string               `json:"note"`
		Patch  *model.MetadataPatch `json:"patch,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	item, err := a.manager.Transition(r.Context(), chi.URLParam(r, "id"), req.Status, req.Note, req.Patch)
	if err != nil {
		if eris.Is(err, lifecycle.ErrInvalidTransition) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *api) handleHistory(w http.ResponseWriter, r *http.Request) {
	changes, err := a.manager.History(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"changes": changes})
}

func (a *api) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	if err := a.manager.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// -- response helpers --

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	zap.L().Error("store operation failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func queryInt(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

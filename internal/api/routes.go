package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/forPelevin/takecut/internal/domain/edits"
	"github.com/forPelevin/takecut/internal/domain/split"
	"github.com/forPelevin/takecut/internal/store"
)

// maxBodyBytes bounds request bodies; edit lists are the largest.
const maxBodyBytes = 4 << 20

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/cut", cutHandler(cfg))
		r.Post("/split", splitHandler(cfg))
		r.Post("/edit", editHandler(cfg))
		r.Post("/process", processHandler(cfg))

		r.Get("/runs", listRunsHandler(cfg))
		r.Get("/runs/{id}", getRunHandler(cfg))
		r.Get("/runs/{id}/bundle", bundleHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:        "ok",
			Version:       cfg.Version,
			UptimeSeconds: int64(time.Since(cfg.StartTime).Seconds()),
		})
	}
}

func cutHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CutRequest
		if !decodeBody(w, r, &req) || !requireInput(w, req.Input) {
			return
		}
		start, err := req.Start.Seconds()
		if err != nil {
			writeRunError(w, fmt.Errorf("start: %w", err))
			return
		}
		end, err := req.End.Seconds()
		if err != nil {
			writeRunError(w, fmt.Errorf("end: %w", err))
			return
		}
		res, err := cfg.Runner.Cut(r.Context(), req.Input, start, end)
		if err != nil {
			writeRunError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}

func splitHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SplitRequest
		if !decodeBody(w, r, &req) || !requireInput(w, req.Input) {
			return
		}
		if err := split.ValidateParts(req.Parts); err != nil {
			writeRunError(w, err)
			return
		}
		res, err := cfg.Runner.Split(r.Context(), req.Input, req.Parts)
		if err != nil {
			writeRunError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}

func editHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EditRequest
		if !decodeBody(w, r, &req) || !requireInput(w, req.Input) {
			return
		}
		payload, err := edits.DecodePayload(req.Edits)
		if err != nil {
			writeRunError(w, err)
			return
		}
		res, err := cfg.Runner.Edit(r.Context(), req.Input, payload)
		if err != nil {
			writeRunError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}

func processHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ProcessRequest
		if !decodeBody(w, r, &req) || !requireInput(w, req.Input) {
			return
		}
		res, err := cfg.Runner.Process(r.Context(), req.Input, req.Script)
		if err != nil {
			writeRunError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}

func listRunsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer", CodeBadRequest)
				return
			}
			limit = n
		}
		runs, err := cfg.Runner.Runs(r.Context(), limit)
		if err != nil {
			writeRunError(w, err)
			return
		}
		if runs == nil {
			runs = []*store.Run{}
		}
		WriteJSON(w, http.StatusOK, RunsResponse{Runs: runs})
	}
}

func getRunHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := cfg.Runner.Run(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeRunError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, run)
	}
}

func bundleHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := cfg.Runner.Run(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeRunError(w, err)
			return
		}
		var path string
		for _, o := range run.Outputs {
			if o.Role == store.RoleBundle {
				path = o.Path
			}
		}
		if path == "" {
			WriteError(w, http.StatusNotFound, "run has no bundle", CodeNotFound)
			return
		}
		f, err := os.Open(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				WriteError(w, http.StatusNotFound, "bundle file is gone", CodeNotFound)
				return
			}
			writeRunError(w, err)
			return
		}
		defer f.Close()
		st, err := f.Stat()
		if err != nil {
			writeRunError(w, err)
			return
		}

		name := fmt.Sprintf("takecut-%s.zip", run.ID)
		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		http.ServeContent(w, r, filepath.Base(path), st.ModTime(), f)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), CodeBadRequest)
		return false
	}
	return true
}

func requireInput(w http.ResponseWriter, input string) bool {
	if strings.TrimSpace(input) == "" {
		WriteError(w, http.StatusBadRequest, "input is required", CodeBadRequest)
		return false
	}
	return true
}

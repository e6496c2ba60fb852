// Package api provides HTTP handlers for the BasinAtlas server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/basinatlas/server/internal/service"
	"github.com/basinatlas/server/internal/stats"
)

// RouterConfig contains router configuration.
type RouterConfig struct {
	Registry    *DatasetRegistry
	CORSOrigins []string
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// Global datasets endpoint (not dataset-scoped)
	r.Get("/api/datasets", datasetsHandler(cfg.Registry))

	// Dataset-scoped routes: /d/{dataset}/...
	r.Route("/d/{dataset}", func(r chi.Router) {
		r.Use(datasetMiddleware(cfg.Registry))

		// Image endpoints
		r.Get("/legend/{stat}.png", datasetLegendImageHandler)
		r.Get("/legend/{stat}", datasetLegendImageHandler)
		r.Get("/map/{stat}.png", datasetMapImageHandler)
		r.Get("/map/{stat}", datasetMapImageHandler)

		// API endpoints
		r.Route("/api", func(r chi.Router) {
			r.Get("/metadata", datasetMetadataHandler)
			r.Get("/basins", datasetBasinsHandler)
			r.Get("/basins/{name}/months", datasetBasinMonthsHandler)
			r.Get("/style", datasetStyleHandler)
			r.Get("/legend", datasetLegendHandler)
			r.Get("/chart", datasetChartHandler)
			r.Get("/treemap", datasetTreemapHandler)

			r.Route("/selection", func(r chi.Router) {
				r.Get("/", selectionGetHandler)
				r.Put("/", selectionPutHandler)
				r.Delete("/", selectionDeleteHandler)
			})
		})
	})

	return r
}

// Context key for dataset service
type ctxKey string

const datasetServiceKey ctxKey = "datasetService"

// datasetMiddleware resolves the dataset from URL and injects the basin service into context.
func datasetMiddleware(registry *DatasetRegistry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			datasetID := chi.URLParam(r, "dataset")
			svc := registry.Get(datasetID)
			if svc == nil {
				http.Error(w, "dataset not found: "+datasetID, http.StatusNotFound)
				return
			}
			ctx := context.WithValue(r.Context(), datasetServiceKey, svc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func getDatasetService(r *http.Request) *service.BasinService {
	if svc, ok := r.Context().Value(datasetServiceKey).(*service.BasinService); ok {
		return svc
	}
	return nil
}

// datasetsHandler returns the list of available datasets.
func datasetsHandler(registry *DatasetRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"default":  registry.DefaultDatasetID(),
			"datasets": registry.Datasets(),
			"title":    registry.Title(),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}

// querySelector builds a statistic selector from query parameters. The stat
// defaults to population; month is only consulted for the monthly statistic.
func querySelector(r *http.Request) (stats.Selector, error) {
	stat := strings.TrimSpace(r.URL.Query().Get("stat"))
	if stat == "" {
		stat = string(stats.StatPopulation)
	}
	return buildSelector(stat, r)
}

// pathSelector builds a selector from the {stat} URL segment, stripping a
// ".png" extension if the route captured it.
func pathSelector(r *http.Request) (stats.Selector, error) {
	stat := strings.TrimSuffix(chi.URLParam(r, "stat"), ".png")
	return buildSelector(stat, r)
}

func buildSelector(stat string, r *http.Request) (stats.Selector, error) {
	sel := stats.Selector{Stat: stats.Statistic(stat)}
	if monthStr := strings.TrimSpace(r.URL.Query().Get("month")); monthStr != "" {
		month, err := strconv.Atoi(monthStr)
		if err != nil {
			return stats.Selector{}, errors.New("invalid month parameter")
		}
		sel.Month = month
	}
	if err := sel.Validate(); err != nil {
		return stats.Selector{}, err
	}
	return sel, nil
}

// Dataset-scoped handlers (get service from context)
func datasetMetadataHandler(w http.ResponseWriter, r *http.Request) {
	svc := getDatasetService(r)
	if svc == nil {
		http.Error(w, "dataset service not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(svc.Metadata())
}

type basinInfo struct {
	Name       string   `json:"name"`
	Continent  string   `json:"continent,omitempty"`
	Population *float64 `json:"population,omitempty"`
	Average    *float64 `json:"average,omitempty"`
}

func datasetBasinsHandler(w http.ResponseWriter, r *http.Request) {
	svc := getDatasetService(r)
	if svc == nil {
		http.Error(w, "dataset service not found", http.StatusInternalServerError)
		return
	}

	features := svc.Collection().Features()
	basins := make([]basinInfo, 0, len(features))
	for i := range features {
		f := &features[i]
		basins = append(basins, basinInfo{
			Name:       f.Name,
			Continent:  f.Continent,
			Population: f.Population,
			Average:    f.Average,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"basins": basins,
		"total":  len(basins),
	})
}

func datasetBasinMonthsHandler(w http.ResponseWriter, r *http.Request) {
	svc := getDatasetService(r)
	if svc == nil {
		http.Error(w, "dataset service not found", http.StatusInternalServerError)
		return
	}

	name := chi.URLParam(r, "name")
	chart := svc.MonthlySeries(name)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chart)
}

func datasetStyleHandler(w http.ResponseWriter, r *http.Request) {
	svc := getDatasetService(r)
	if svc == nil {
		http.Error(w, "dataset service not found", http.StatusInternalServerError)
		return
	}

	sel, err := querySelector(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := svc.StyleJSON(sel)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func datasetLegendHandler(w http.ResponseWriter, r *http.Request) {
	svc := getDatasetService(r)
	if svc == nil {
		http.Error(w, "dataset service not found", http.StatusInternalServerError)
		return
	}

	sel, err := querySelector(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := svc.LegendJSON(sel)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func datasetChartHandler(w http.ResponseWriter, r *http.Request) {
	svc := getDatasetService(r)
	if svc == nil {
		http.Error(w, "dataset service not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(svc.BarChartForSelection())
}

func datasetTreemapHandler(w http.ResponseWriter, r *http.Request) {
	svc := getDatasetService(r)
	if svc == nil {
		http.Error(w, "dataset service not found", http.StatusInternalServerError)
		return
	}

	data, err := svc.TreemapJSON()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// selectionState is the selection endpoint response body.
type selectionState struct {
	Selected bool   `json:"selected"`
	Basin    string `json:"basin,omitempty"`
	Resolved string `json:"resolved,omitempty"`
}

func currentSelection(svc *service.BasinService) selectionState {
	state := selectionState{}
	name, ok := svc.Selection().Get()
	if !ok {
		return state
	}
	state.Selected = true
	state.Basin = name
	if f, found := svc.Selection().Resolve(svc.Collection(), svc.DefaultBasin()); found {
		state.Resolved = f.Name
	}
	return state
}

func selectionGetHandler(w http.ResponseWriter, r *http.Request) {
	svc := getDatasetService(r)
	if svc == nil {
		http.Error(w, "dataset service not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(currentSelection(svc))
}

type selectionPutRequest struct {
	Basin string `json:"basin"`
}

func selectionPutHandler(w http.ResponseWriter, r *http.Request) {
	svc := getDatasetService(r)
	if svc == nil {
		http.Error(w, "dataset service not found", http.StatusInternalServerError)
		return
	}

	var req selectionPutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	req.Basin = strings.TrimSpace(req.Basin)
	if req.Basin == "" {
		http.Error(w, "basin is required", http.StatusBadRequest)
		return
	}

	svc.Selection().Set(req.Basin)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(currentSelection(svc))
}

func selectionDeleteHandler(w http.ResponseWriter, r *http.Request) {
	svc := getDatasetService(r)
	if svc == nil {
		http.Error(w, "dataset service not found", http.StatusInternalServerError)
		return
	}

	svc.Selection().Clear()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(currentSelection(svc))
}

func datasetLegendImageHandler(w http.ResponseWriter, r *http.Request) {
	svc := getDatasetService(r)
	if svc == nil {
		http.Error(w, "dataset service not found", http.StatusInternalServerError)
		return
	}

	sel, err := pathSelector(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := svc.LegendPNG(sel)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

func datasetMapImageHandler(w http.ResponseWriter, r *http.Request) {
	svc := getDatasetService(r)
	if svc == nil {
		http.Error(w, "dataset service not found", http.StatusInternalServerError)
		return
	}

	sel, err := pathSelector(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := svc.MapPNG(sel)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

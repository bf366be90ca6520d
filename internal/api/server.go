// Package api exposes the analytics queries over HTTP. Handlers only parse
// parameters, map errors to status codes and shape response envelopes; all
// query logic lives in the analytics service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/medtel/channel-analytics/internal/analytics"
	"github.com/medtel/channel-analytics/internal/models"
)

// Analytics is the query surface the server exposes.
type Analytics interface {
	Summary(ctx context.Context) (*models.Summary, error)
	TopProducts(ctx context.Context, limit int) ([]models.ProductSummary, error)
	ChannelActivity(ctx context.Context, channel string) (*models.ChannelActivity, error)
	SearchMessages(ctx context.Context, query, channel string, limit int) ([]models.SearchResult, error)
	VisualContentStats(ctx context.Context) ([]models.ChannelVisualStats, error)
}

// Pipeline is the run-control surface for the trigger and metrics endpoints.
type Pipeline interface {
	Run(ctx context.Context) error
	GetMetrics() string
}

const (
	defaultTopProductsLimit = 10
	defaultSearchLimit      = 20
)

// Server wires the HTTP routes.
type Server struct {
	analytics Analytics
	pipeline  Pipeline
}

// NewServer creates a new API server
func NewServer(analyticsService Analytics, pipelineService Pipeline) *Server {
	return &Server{
		analytics: analyticsService,
		pipeline:  pipelineService,
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.healthHandler).Methods("GET")
	router.HandleFunc("/metrics", s.metricsHandler).Methods("GET")
	router.HandleFunc("/trigger", s.triggerHandler).Methods("POST")

	router.HandleFunc("/api/summary", s.summaryHandler).Methods("GET")
	router.HandleFunc("/api/reports/top-products", s.topProductsHandler).Methods("GET")
	router.HandleFunc("/api/channels/{channel}/activity", s.channelActivityHandler).Methods("GET")
	router.HandleFunc("/api/search/messages", s.searchMessagesHandler).Methods("GET")
	router.HandleFunc("/api/reports/visual-content", s.visualContentHandler).Methods("GET")

	return router
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(s.pipeline.GetMetrics()))
}

func (s *Server) triggerHandler(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := s.pipeline.Run(context.Background()); err != nil {
			logrus.Errorf("Manual pipeline trigger failed: %v", err)
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message":"Pipeline run triggered successfully"}`))
}

func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := s.analytics.Summary(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "success",
		"timestamp": time.Now().Format(time.RFC3339),
		"data":      summary,
	})
}

func (s *Server) topProductsHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"), defaultTopProductsLimit)
	if err != nil {
		writeErrorStatus(w, http.StatusBadRequest, err)
		return
	}

	products, err := s.analytics.TopProducts(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "success",
		"limit":          limit,
		"total_products": len(products),
		"products":       products,
	})
}

func (s *Server) channelActivityHandler(w http.ResponseWriter, r *http.Request) {
	channel := mux.Vars(r)["channel"]

	activity, err := s.analytics.ChannelActivity(r.Context(), channel)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"channel": channel,
		"statistics": map[string]any{
			"total_posts":       activity.TotalPosts,
			"avg_views":         activity.AvgViews,
			"max_views":         activity.MaxViews,
			"posts_with_images": activity.PostsWithImages,
			"image_percentage":  activity.ImagePercentage,
			"first_post_date":   activity.FirstPostDate,
			"last_post_date":    activity.LastPostDate,
		},
		"daily_activity": activity.DailyActivity,
		"activity_days":  len(activity.DailyActivity),
	})
}

func (s *Server) searchMessagesHandler(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	query := params.Get("query")
	channel := params.Get("channel")

	limit, err := parseLimit(params.Get("limit"), defaultSearchLimit)
	if err != nil {
		writeErrorStatus(w, http.StatusBadRequest, err)
		return
	}

	results, err := s.analytics.SearchMessages(r.Context(), query, channel, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	var channelFilter any
	if channel != "" {
		channelFilter = channel
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "success",
		"search_query":   query,
		"channel_filter": channelFilter,
		"result_count":   len(results),
		"limit":          limit,
		"results":        results,
	})
}

func (s *Server) visualContentHandler(w http.ResponseWriter, r *http.Request) {
	channels, err := s.analytics.VisualContentStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "success",
		"analysis": "Image usage and engagement comparison",
		"channels": channels,
	})
}

func parseLimit(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, analytics.ErrInvalidLimit
	}
	return limit, nil
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, analytics.ErrNotFound):
		writeErrorStatus(w, http.StatusNotFound, err)
	case errors.Is(err, analytics.ErrInvalidLimit), errors.Is(err, analytics.ErrEmptyQuery):
		writeErrorStatus(w, http.StatusBadRequest, err)
	default:
		logrus.Errorf("Query failed: %v", err)
		writeErrorStatus(w, http.StatusInternalServerError, errors.New("internal server error"))
	}
}

func writeErrorStatus(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{
		"status": "error",
		"detail": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

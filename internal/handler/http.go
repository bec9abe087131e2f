package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/elo-ledger/internal/bracket"
	"github.com/elo-ledger/internal/domain"
	"github.com/elo-ledger/internal/websocket"
)

// Ledger is the set of operations exposed over HTTP
type Ledger interface {
	Ping(ctx context.Context) error
	CreateLeaderboard(ctx context.Context, req domain.CreateLeaderboardRequest) (*domain.Leaderboard, error)
	ListLeaderboards(ctx context.Context) ([]domain.Leaderboard, error)
	GetLeaderboard(ctx context.Context, leaderboardID string) (*domain.LeaderboardView, error)
	DeleteGameSystem(ctx context.Context, leaderboardID string) (int, error)
	Rankings(ctx context.Context, leaderboardID string, limit int) ([]domain.RankedPlayer, error)
	RegisterPlayer(ctx context.Context, req domain.RegisterPlayerRequest) (*domain.RegisterPlayerResult, error)
	PlayerProfile(ctx context.Context, externalID, leaderboardID string) (*domain.PlayerProfile, error)
	RecordMatch(ctx context.Context, req domain.MatchRequest) (*domain.MatchResult, error)
	SetMatchStarter(ctx context.Context, req domain.StarterRequest) (*domain.StarterResult, error)
	UndoLastMatch(ctx context.Context, req domain.UndoRequest) (*domain.UndoResult, error)
	BuildTournament(ctx context.Context, req domain.TournamentRequest) (*bracket.Bracket, error)
}

// Handler provides HTTP handlers for the ledger API
type Handler struct {
	ledger   Ledger
	hub      *websocket.Hub
	metrics  http.Handler
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a new HTTP handler. hub and metrics may be nil.
func NewHandler(ledger Ledger, hub *websocket.Hub, metrics http.Handler, logger *slog.Logger) *Handler {
	return &Handler{
		ledger:   ledger,
		hub:      hub,
		metrics:  metrics,
		validate: newValidator(),
		logger:   logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
	if h.hub != nil {
		r.Get("/ws", h.HandleWebSocket)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Compress(5))

		r.Route("/leaderboards", func(r chi.Router) {
			r.Post("/", h.CreateLeaderboard)
			r.Get("/", h.ListLeaderboards)

			r.Route("/{leaderboardID}", func(r chi.Router) {
				r.Get("/", h.GetLeaderboard)
				r.Delete("/", h.DeleteGameSystem)
				r.Get("/rankings", h.GetRankings)
			})
		})

		r.Post("/players", h.RegisterPlayer)
		r.Get("/players/{externalID}/stats", h.GetPlayerStats)

		r.Route("/matches", func(r chi.Router) {
			r.Post("/", h.RecordMatch)
			r.Post("/starter", h.SetMatchStarter)
			r.Post("/undo", h.UndoLastMatch)
		})

		r.Post("/tournaments", h.BuildTournament)

		if h.hub != nil {
			r.Get("/ws/stats", h.GetWebSocketStats)
		}
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to write response", "error", err)
	}
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, status int, data any) {
	h.writeJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError maps a domain error to its status code. Unclassified errors are
// logged and reported as a generic internal error.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case domain.IsNotFoundError(err):
		status = http.StatusNotFound
	case domain.IsValidationError(err):
		status = http.StatusBadRequest
	case domain.IsConflictError(err):
		status = http.StatusConflict
	default:
		h.logger.Error(op+" failed", "error", err, "request_id", middleware.GetReqID(r.Context()))
		if !domain.IsConsistencyError(err) {
			err = domain.ErrInternalError
		}
	}

	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// decode reads a JSON body into req and validates it
func (h *Handler) decode(r *http.Request, req any) error {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return domain.ErrInvalidRequest
	}
	return h.validateRequest(req)
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, http.StatusOK, map[string]any{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ReadyCheck reports ready once the store answers
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Ping(r.Context()); err != nil {
		h.logger.Warn("readiness check failed", "error", err)
		h.writeJSON(w, http.StatusServiceUnavailable, APIResponse{Success: false, Error: "store unavailable"})
		return
	}
	h.writeSuccess(w, http.StatusOK, map[string]string{"status": "ready"})
}

// CreateLeaderboard creates the all-time leaderboard of a game system
func (h *Handler) CreateLeaderboard(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateLeaderboardRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, "create leaderboard", err)
		return
	}

	lb, err := h.ledger.CreateLeaderboard(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "create leaderboard", err)
		return
	}
	h.writeSuccess(w, http.StatusCreated, lb)
}

// ListLeaderboards returns all leaderboards
func (h *Handler) ListLeaderboards(w http.ResponseWriter, r *http.Request) {
	leaderboards, err := h.ledger.ListLeaderboards(r.Context())
	if err != nil {
		h.writeError(w, r, "list leaderboards", err)
		return
	}
	h.writeSuccess(w, http.StatusOK, leaderboards)
}

// GetLeaderboard returns a leaderboard with its players and recent matches
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	view, err := h.ledger.GetLeaderboard(r.Context(), chi.URLParam(r, "leaderboardID"))
	if err != nil {
		h.writeError(w, r, "get leaderboard", err)
		return
	}
	h.writeSuccess(w, http.StatusOK, view)
}

// DeleteGameSystem deletes every leaderboard of the target's game type
func (h *Handler) DeleteGameSystem(w http.ResponseWriter, r *http.Request) {
	n, err := h.ledger.DeleteGameSystem(r.Context(), chi.URLParam(r, "leaderboardID"))
	if err != nil {
		h.writeError(w, r, "delete game system", err)
		return
	}
	h.writeSuccess(w, http.StatusOK, map[string]any{"status": "deleted", "leaderboards": n})
}

// GetRankings returns active players best first
func (h *Handler) GetRankings(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	ranked, err := h.ledger.Rankings(r.Context(), chi.URLParam(r, "leaderboardID"), limit)
	if err != nil {
		h.writeError(w, r, "get rankings", err)
		return
	}
	h.writeSuccess(w, http.StatusOK, ranked)
}

// RegisterPlayer adds a player to a game system
func (h *Handler) RegisterPlayer(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterPlayerRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, "register player", err)
		return
	}

	res, err := h.ledger.RegisterPlayer(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "register player", err)
		return
	}
	status := http.StatusOK
	if res.AllTimeCreated || res.SeasonCreated {
		status = http.StatusCreated
	}
	h.writeSuccess(w, status, res)
}

// GetPlayerStats returns a player's all-time and season statistics
func (h *Handler) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	profile, err := h.ledger.PlayerProfile(r.Context(), chi.URLParam(r, "externalID"), r.URL.Query().Get("leaderboard_id"))
	if err != nil {
		h.writeError(w, r, "get player stats", err)
		return
	}
	h.writeSuccess(w, http.StatusOK, profile)
}

// RecordMatch records a result on both ledgers
func (h *Handler) RecordMatch(w http.ResponseWriter, r *http.Request) {
	var req domain.MatchRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, "record match", err)
		return
	}

	res, err := h.ledger.RecordMatch(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "record match", err)
		return
	}
	h.writeSuccess(w, http.StatusCreated, res)
}

// SetMatchStarter stamps the starting player on a recorded match
func (h *Handler) SetMatchStarter(w http.ResponseWriter, r *http.Request) {
	var req domain.StarterRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, "set match starter", err)
		return
	}

	res, err := h.ledger.SetMatchStarter(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "set match starter", err)
		return
	}
	h.writeSuccess(w, http.StatusOK, res)
}

// UndoLastMatch reverses the latest match of a game system
func (h *Handler) UndoLastMatch(w http.ResponseWriter, r *http.Request) {
	var req domain.UndoRequest
	if r.ContentLength != 0 {
		if err := h.decode(r, &req); err != nil {
			h.writeError(w, r, "undo match", err)
			return
		}
	}

	res, err := h.ledger.UndoLastMatch(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "undo match", err)
		return
	}
	h.writeSuccess(w, http.StatusOK, res)
}

// BuildTournament seeds a bracket from the season roster
func (h *Handler) BuildTournament(w http.ResponseWriter, r *http.Request) {
	var req domain.TournamentRequest
	if r.ContentLength != 0 {
		if err := h.decode(r, &req); err != nil {
			h.writeError(w, r, "build tournament", err)
			return
		}
	}

	b, err := h.ledger.BuildTournament(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "build tournament", err)
		return
	}

	labels := make([]string, len(b.FirstRound))
	for i, s := range b.FirstRound {
		labels[i] = s.Label()
	}
	h.writeSuccess(w, http.StatusOK, map[string]any{
		"bracket": b,
		"labels":  labels,
	})
}

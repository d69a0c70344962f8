package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"scenario-quiz-service/internal/app"
	"scenario-quiz-service/internal/domain"
)

// UserHeader carries the player identity on API calls.
const UserHeader = "X-Quiz-User"

// QuizLister lists the playable quizzes.
type QuizLister interface {
	ListQuizzes(ctx context.Context) ([]domain.QuizSummary, error)
}

// APIDeps are the stores behind the REST API.
type APIDeps struct {
	Progress app.ProgressAPI
	Scores   app.ScoreAPI
	Settings app.SettingsAPI
	Quizzes  QuizLister
	Namer    app.QuizNamer
	Logger   *slog.Logger
}

// APIHandler serves progress, score and settings endpoints wrapped in a {success,data} envelope.
type APIHandler struct {
	deps APIDeps
}

func NewAPIHandler(deps APIDeps) *APIHandler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &APIHandler{deps: deps}
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Register mounts the API routes on r.
func (h *APIHandler) Register(r chi.Router) {
	r.Route("/api", func(api chi.Router) {
		api.Get("/quizzes", h.listQuizzes)
		api.Get("/settings/quiz-timers", h.getTimerSettings)
		api.Group(func(user chi.Router) {
			user.Use(requireUser)
			user.Get("/quiz-progress/{quiz}", h.getProgress)
			user.Put("/quiz-progress/{quiz}", h.putProgress)
			user.Post("/quiz-scores/{quiz}", h.postScore)
		})
	})
}

// NewRouter builds the full server router: REST API, websocket play and health probe.
func NewRouter(api *APIHandler, ws *WSHandler, allowedOrigins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", UserHeader},
			MaxAge:         300,
		}))
	}
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	if api != nil {
		r.Group(func(timed chi.Router) {
			timed.Use(middleware.Timeout(30 * time.Second))
			api.Register(timed)
		})
	}
	if ws != nil {
		r.Get("/ws", ws.ServeWS)
	}
	return r
}

type userKey struct{}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := r.Header.Get(UserHeader)
		if user == "" {
			writeJSON(w, http.StatusUnauthorized, envelope{Error: "missing " + UserHeader + " header"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	})
}

func userFrom(r *http.Request) string {
	user, _ := r.Context().Value(userKey{}).(string)
	return user
}

func (h *APIHandler) quizParam(r *http.Request) string {
	return h.deps.Namer.Normalize(chi.URLParam(r, "quiz"))
}

func (h *APIHandler) listQuizzes(w http.ResponseWriter, r *http.Request) {
	if h.deps.Quizzes == nil {
		writeJSON(w, http.StatusOK, envelope{Success: true, Data: []domain.QuizSummary{}})
		return
	}
	quizzes, err := h.deps.Quizzes.ListQuizzes(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if quizzes == nil {
		quizzes = []domain.QuizSummary{}
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: quizzes})
}

func (h *APIHandler) getProgress(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.Progress.GetQuizProgress(r.Context(), userFrom(r), h.quizParam(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: snap})
}

func (h *APIHandler) putProgress(w http.ResponseWriter, r *http.Request) {
	var snap domain.ProgressSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Error: "invalid progress payload"})
		return
	}
	snap = snap.Normalize(domain.DefaultQuestionsPerTier)
	if err := h.deps.Progress.SaveQuizProgress(r.Context(), userFrom(r), h.quizParam(r), snap); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: snap})
}

func (h *APIHandler) postScore(w http.ResponseWriter, r *http.Request) {
	var report domain.ScoreReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Error: "invalid score payload"})
		return
	}
	report.Username = userFrom(r)
	report.QuizName = h.quizParam(r)
	if h.deps.Scores != nil {
		if err := h.deps.Scores.UpdateQuizScore(r.Context(), report); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, envelope{Success: true})
}

func (h *APIHandler) getTimerSettings(w http.ResponseWriter, r *http.Request) {
	if h.deps.Settings == nil {
		writeJSON(w, http.StatusOK, envelope{Success: true, Data: domain.Settings{QuizTimers: map[string]int{}}})
		return
	}
	settings, err := h.deps.Settings.GetQuizTimerSettings(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: settings})
}

func (h *APIHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrProgressNotFound), errors.Is(err, domain.ErrQuizNotFound):
		writeJSON(w, http.StatusNotFound, envelope{Error: err.Error()})
	case errors.Is(err, domain.ErrMalformedSnapshot):
		writeJSON(w, http.StatusUnprocessableEntity, envelope{Error: err.Error()})
	default:
		h.deps.Logger.Error("api request failed",
			"method", r.Method, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
		writeJSON(w, http.StatusInternalServerError, envelope{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

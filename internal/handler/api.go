package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/pavelanni/qextractor/internal/model"
	"github.com/pavelanni/qextractor/internal/registry"
)

type createRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (h *Handler) apiRoutes(r chi.Router) {
	origins := h.config.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300,
	}))

	r.Get("/exams", h.handleAPIListExams)
	r.Post("/exams", h.handleAPICreateExam)
	r.Get("/exams/{examID}/courses", h.handleAPIListCourses)
	r.Post("/exams/{examID}/courses", h.handleAPICreateCourse)
	r.Get("/courses/{courseID}/questions", h.handleAPIListQuestions)
	r.Get("/presets", h.handleAPIListPresets)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// writeAPIError maps registry errors to status codes.
func writeAPIError(w http.ResponseWriter, err error) {
	var verr *registry.ValidationError
	var rerr *registry.RemoteError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Message, Field: verr.Field})
	case errors.As(err, &rerr):
		slog.Error("registry call failed", "op", rerr.Op, "error", rerr.Err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: rerr.Op + " failed"})
	default:
		slog.Error("api error", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func decodeCreate(w http.ResponseWriter, r *http.Request) (createRequest, bool) {
	var req createRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return createRequest{}, false
	}
	return req, true
}

func (h *Handler) handleAPIListExams(w http.ResponseWriter, r *http.Request) {
	exams, err := h.registry.ListExams(r.Context())
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if exams == nil {
		exams = []model.Exam{}
	}
	writeJSON(w, http.StatusOK, exams)
}

func (h *Handler) handleAPICreateExam(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCreate(w, r)
	if !ok {
		return
	}
	exam, err := h.registry.CreateExam(r.Context(), req.Name, req.Description)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, exam)
}

func (h *Handler) handleAPIListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.registry.ListCourses(r.Context(), chi.URLParam(r, "examID"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if courses == nil {
		courses = []model.Course{}
	}
	writeJSON(w, http.StatusOK, courses)
}

func (h *Handler) handleAPICreateCourse(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCreate(w, r)
	if !ok {
		return
	}
	course, err := h.registry.CreateCourse(r.Context(), chi.URLParam(r, "examID"), req.Name, req.Description)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, course)
}

func (h *Handler) handleAPIListQuestions(w http.ResponseWriter, r *http.Request) {
	if h.questions == nil {
		http.Error(w, "questions are not available", http.StatusNotImplemented)
		return
	}
	questions, err := h.questions.ListQuestions(r.Context(), chi.URLParam(r, "courseID"))
	if err != nil {
		slog.Error("failed to list questions", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	if questions == nil {
		questions = []model.Question{}
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handler) handleAPIListPresets(w http.ResponseWriter, r *http.Request) {
	type presetJSON struct {
		Name  string `json:"name"`
		Title string `json:"title"`
		Types any    `json:"types"`
	}
	out := make([]presetJSON, 0, len(h.presets))
	for _, p := range h.presets {
		out = append(out, presetJSON{Name: p.Name, Title: p.Title, Types: p.Types})
	}
	writeJSON(w, http.StatusOK, out)
}

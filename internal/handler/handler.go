package handler

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/qextractor/internal/handler/views"
	appI18n "github.com/pavelanni/qextractor/internal/i18n"
	"github.com/pavelanni/qextractor/internal/model"
	"github.com/pavelanni/qextractor/internal/presets"
	"github.com/pavelanni/qextractor/internal/registry"
	"github.com/pavelanni/qextractor/internal/storage"
	"github.com/pavelanni/qextractor/internal/wizard"
)

const wizardCookieName = "wizard_session"

// SessionStore persists wizard snapshots between requests.
type SessionStore interface {
	CreateWizardSession(ctx context.Context, data []byte) (string, error)
	GetWizardSession(ctx context.Context, id string) ([]byte, error)
	SaveWizardSession(ctx context.Context, id string, data []byte) error
	DeleteWizardSession(ctx context.Context, id string) error
}

// QuestionLister lists the stored questions of a course.
type QuestionLister interface {
	ListQuestions(ctx context.Context, courseID string) ([]model.Question, error)
}

// Deps are the collaborators of a Handler. Questions is optional.
type Deps struct {
	Registry  *registry.Client
	Sessions  SessionStore
	Blobs     storage.BlobStore
	Extractor wizard.Extractor
	Questions QuestionLister
	Presets   []presets.Preset
	Config    model.AppConfig
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	registry  *registry.Client
	sessions  SessionStore
	blobs     storage.BlobStore
	extractor wizard.Extractor
	questions QuestionLister
	presets   []presets.Preset
	config    model.AppConfig

	// Requests of one wizard session are serialised on one of these.
	locks [64]sync.Mutex
}

// New creates a new Handler.
func New(d Deps) (*Handler, error) {
	switch {
	case d.Registry == nil:
		return nil, errors.New("handler: registry is required")
	case d.Sessions == nil:
		return nil, errors.New("handler: session store is required")
	case d.Blobs == nil:
		return nil, errors.New("handler: blob store is required")
	case d.Extractor == nil:
		return nil, errors.New("handler: extractor is required")
	}
	if d.Config.MaxUploadBytes <= 0 {
		d.Config.MaxUploadBytes = 64 << 20
	}
	return &Handler{
		registry:  d.Registry,
		sessions:  d.Sessions,
		blobs:     d.Blobs,
		extractor: d.Extractor,
		questions: d.Questions,
		presets:   d.Presets,
		config:    d.Config,
	}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Route("/api", h.apiRoutes)

	r.Group(func(r chi.Router) {
		r.Use(h.csrfMiddleware)
		r.Get("/", h.handleIndex)
		r.Post("/wizard/exam", h.handleSelectExam)
		r.Post("/wizard/exam/new", h.handleCreateExam)
		r.Post("/wizard/course", h.handleSelectCourse)
		r.Post("/wizard/course/new", h.handleCreateCourse)
		r.Post("/wizard/details", h.handleDetails)
		r.Post("/wizard/types", h.handleTypes)
		r.Post("/wizard/preset", h.handlePreset)
		r.Post("/wizard/upload", h.handleUpload)
		r.Post("/wizard/extract", h.handleExtract)
		r.Post("/wizard/reset", h.handleReset)
	})
}

// BasePathMiddleware stores the configured base path in the request context.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// path prefixes p with the base path.
func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

func (h *Handler) cookiePath() string {
	if h.config.BasePath != "" {
		return h.config.BasePath + "/"
	}
	return "/"
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (h *Handler) lock(id string) *sync.Mutex {
	f := fnv.New32a()
	_, _ = f.Write([]byte(id))
	return &h.locks[f.Sum32()%uint32(len(h.locks))]
}

func (h *Handler) defaultYear() int {
	if h.config.DefaultYear > 0 {
		return h.config.DefaultYear
	}
	return time.Now().Year()
}

// withWizard loads the caller's wizard, runs fn on it and saves the result.
// A new session is started when the cookie is missing or stale.
func (h *Handler) withWizard(w http.ResponseWriter, r *http.Request, fn func(c *wizard.Controller)) error {
	ctx := r.Context()

	var id string
	if ck, err := r.Cookie(wizardCookieName); err == nil {
		id = ck.Value
	}

	var c *wizard.Controller
	if id != "" {
		mu := h.lock(id)
		mu.Lock()
		defer mu.Unlock()

		data, err := h.sessions.GetWizardSession(ctx, id)
		if err != nil {
			return err
		}
		if data != nil {
			var snap wizard.Snapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				slog.Warn("discarding unreadable wizard session", "error", err)
			} else {
				c = wizard.FromSnapshot(snap)
			}
		}
	}
	if c == nil {
		c = wizard.New(h.defaultYear())
		data, err := json.Marshal(c.Snapshot())
		if err != nil {
			return err
		}
		id, err = h.sessions.CreateWizardSession(ctx, data)
		if err != nil {
			return err
		}
		http.SetCookie(w, &http.Cookie{
			Name:     wizardCookieName,
			Value:    id,
			Path:     h.cookiePath(),
			HttpOnly: true,
			Secure:   h.config.SecureCookies,
			SameSite: http.SameSiteLaxMode,
		})
	}

	fn(c)

	data, err := json.Marshal(c.Snapshot())
	if err != nil {
		return err
	}
	return h.sessions.SaveWizardSession(ctx, id, data)
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var view views.WizardView
	err := h.withWizard(w, r, func(c *wizard.Controller) {
		c.LoadExams(ctx, h.registry)
		if c.State().Exam != nil {
			c.LoadCourses(ctx, h.registry)
		}
		view = h.buildView(ctx, c)
	})
	if err != nil {
		slog.Error("failed to load wizard", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.WizardPage(view).Render(ctx, w); err != nil {
		slog.Error("render error", "error", err)
	}
}

// buildView drains the controller's notices into a page model.
func (h *Handler) buildView(ctx context.Context, c *wizard.Controller) views.WizardView {
	s := c.State()
	v := views.WizardView{
		Lang:      appI18n.LangFromContext(ctx),
		BasePath:  h.config.BasePath,
		CSRFToken: model.CSRFTokenFromContext(ctx),
		Slot:      s.Slot,
		Part:      s.Part,
		Year:      s.Year,
		Complete:  c.Complete(),
	}

	for _, n := range c.DrainNotices() {
		v.Notices = append(v.Notices, views.NoticeView{Level: string(n.Level), Text: appI18n.Tn(ctx, n.ID, n.Data)})
	}
	for i, step := range c.VisibleSteps() {
		v.Steps = append(v.Steps, views.StepView{Name: step.String(), Number: i + 1, TitleID: step.TitleID()})
	}

	for _, e := range c.Exams() {
		selected := s.Exam != nil && s.Exam.ID == e.ID
		v.Exams = append(v.Exams, views.OptionView{ID: e.ID, Name: e.Name, Selected: selected})
	}
	if s.Exam != nil && s.Exam.Description != nil {
		v.SelectedExamDescription = *s.Exam.Description
	}
	for _, course := range c.Courses() {
		selected := s.Course != nil && s.Course.ID == course.ID
		v.Courses = append(v.Courses, views.OptionView{ID: course.ID, Name: course.Name, Selected: selected})
	}

	for _, p := range h.presets {
		v.Presets = append(v.Presets, views.PresetView{Name: p.Name, Title: p.Title})
	}
	v.Types = typeViews(s.Settings)

	for _, f := range s.Files {
		v.Files = append(v.Files, views.FileView{Name: f.Name, Size: humanize.Bytes(uint64(f.Size))})
	}
	if c.Visible(wizard.StepExtract) {
		v.Summary = appI18n.Td(ctx, "ExtractSummary", map[string]any{
			"Exam":   s.Exam.Name,
			"Course": s.Course.Name,
			"Slot":   s.Slot,
			"Part":   s.Part,
			"Year":   s.Year,
		})
	}
	return v
}

// typeViews lists the known types followed by any custom types in use.
func typeViews(settings model.QuestionTypeSettings) []views.TypeView {
	var labels []string
	known := make(map[string]bool)
	for _, qt := range model.KnownQuestionTypes {
		labels = append(labels, string(qt))
		known[string(qt)] = true
	}
	var custom []string
	for label := range settings {
		if !known[label] {
			custom = append(custom, label)
		}
	}
	sort.Strings(custom)
	labels = append(labels, custom...)

	out := make([]views.TypeView, 0, len(labels))
	for _, label := range labels {
		cfg, ok := settings[label]
		out = append(out, views.TypeView{
			Label:          label,
			Selected:       ok,
			Configured:     ok && cfg.Configured(),
			CorrectMarks:   formatFloat(cfg.CorrectMarks),
			IncorrectMarks: formatFloat(cfg.IncorrectMarks),
			SkippedMarks:   formatFloat(cfg.SkippedMarks),
			PartialMarks:   formatFloat(cfg.PartialMarks),
			TimeMinutes:    formatFloat(cfg.TimeMinutes),
		})
	}
	return out
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

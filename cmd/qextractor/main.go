package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/qextractor/internal/handler"
	appI18n "github.com/pavelanni/qextractor/internal/i18n"
	"github.com/pavelanni/qextractor/internal/model"
	"github.com/pavelanni/qextractor/internal/presets"
	"github.com/pavelanni/qextractor/internal/storage"
	"github.com/pavelanni/qextractor/internal/tui"
	"github.com/pavelanni/qextractor/internal/wizard"
)

//go:generate templ generate

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "qextractor",
		Short: "Extract and categorize exam questions from PDF papers",
	}

	serve := serveCmd()
	root.AddCommand(serve, tuiCmd(), extractCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `qextractor --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web wizard",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("lang", "l", "en", "Default UI language (en, ru)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /qx)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.StringSlice("cors-origins", nil, "Allowed origins of the JSON API (default any)")
	f.String("max-upload", "64MB", "Maximum size of one upload request")
	f.Duration("session-cleanup", time.Hour, "Interval between expired session sweeps (0 disables)")
	addBackendFlags(cmd)
	addExtractFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func tuiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Run the wizard in the terminal",
		RunE:  runTUI,
	}
	f := cmd.Flags()
	f.StringP("lang", "l", "en", "UI language (en, ru)")
	f.String("theme", "", "Color theme (dark, light)")
	f.String("log-file", "", "Write logs to this file instead of discarding them")
	addBackendFlags(cmd)
	addExtractFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [flags] FILE.pdf...",
		Short: "Extract questions from PDF files without a UI",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runExtract,
	}
	f := cmd.Flags()
	f.String("exam", "", "Exam name or ID (required)")
	f.String("course", "", "Course name or ID (required)")
	f.String("slot", "", "Exam slot (required)")
	f.String("part", "", "Paper part (required)")
	f.Int("year", time.Now().Year(), "Paper year")
	f.String("preset", "", "Question-type preset to apply (required)")
	f.Bool("create", false, "Create the exam and course when they do not exist")
	f.StringP("lang", "l", "en", "Language of log notices (en, ru)")
	addBackendFlags(cmd)
	addExtractFlags(cmd)
	addLogFlags(cmd)

	for _, name := range []string{"exam", "course", "slot", "part", "preset"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the questions of a course as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("course-id", "", "Course identifier (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addBackendFlags(cmd)
	addLogFlags(cmd)

	_ = cmd.MarkFlagRequired("course-id")
	return cmd
}

func setupLogging(cmd *cobra.Command, w io.Writer) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(w, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(w, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("QEXTRACTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("qextractor")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/qextractor")
	v.AddConfigPath("/etc/qextractor")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			slog.Info("shutting down")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd, os.Stderr)
	v := viperForCmd(cmd)

	ctx, cancel := signalContext()
	defer cancel()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	a, err := openApp(ctx, v, true)
	if err != nil {
		return err
	}
	defer a.Close()

	maxUpload, err := humanize.ParseBytes(v.GetString("max-upload"))
	if err != nil {
		return fmt.Errorf("parse max-upload: %w", err)
	}

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	cfg := model.AppConfig{
		BasePath:       basePath,
		SecureCookies:  v.GetBool("secure-cookies"),
		MaxUploadBytes: int64(maxUpload),
		CORSOrigins:    v.GetStringSlice("cors-origins"),
	}

	h, err := handler.New(handler.Deps{
		Registry:  a.registry,
		Sessions:  a.store,
		Blobs:     a.blobs,
		Extractor: a.extractor,
		Questions: a.questions,
		Presets:   a.presets,
		Config:    cfg,
	})
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	if every := v.GetDuration("session-cleanup"); every > 0 {
		go a.sweepSessions(ctx, every)
	}

	srv := &http.Server{
		Addr:              v.GetString("addr"),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	slog.Info("starting server",
		"addr", srv.Addr,
		"backend", v.GetString("backend"),
		"model", v.GetString("llm-model"),
		"llm_url", v.GetString("llm-url"),
		"lang", lang,
		"base_path", basePath,
		"max_upload", humanize.Bytes(maxUpload),
		"presets", len(a.presets),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runTUI(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)

	logOut := io.Discard
	if path := v.GetString("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	setupLogging(cmd, logOut)

	ctx, cancel := signalContext()
	defer cancel()

	lang := appI18n.Match(v.GetString("lang"), v.GetString("lang"))
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	ctx = appI18n.WithLocalizer(ctx, appI18n.NewLocalizer(lang))
	ctx = appI18n.WithLang(ctx, lang)

	a, err := openApp(ctx, v, true)
	if err != nil {
		return err
	}
	defer a.Close()

	m := tui.New(ctx, tui.Config{
		Registry:  a.registry,
		Blobs:     a.blobs,
		Extractor: a.extractor,
		Presets:   a.presets,
		Year:      time.Now().Year(),
		Theme:     tui.DetectTheme(v.GetString("theme")),
	})
	final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run tui: %w", err)
	}
	if fm, ok := final.(tui.Model); ok && fm.Extracted() > 0 {
		fmt.Println(appI18n.Tp(ctx, "ExtractionDone", fm.Extracted()))
	}
	return nil
}

func runExtract(cmd *cobra.Command, args []string) error {
	setupLogging(cmd, os.Stderr)
	v := viperForCmd(cmd)

	ctx, cancel := signalContext()
	defer cancel()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	ctx = appI18n.WithLocalizer(ctx, appI18n.NewLocalizer(lang))

	a, err := openApp(ctx, v, true)
	if err != nil {
		return err
	}
	defer a.Close()

	preset, ok := presets.Find(a.presets, v.GetString("preset"))
	if !ok {
		return fmt.Errorf("unknown preset %q", v.GetString("preset"))
	}

	c := wizard.New(v.GetInt("year"))
	defer logNotices(ctx, c)

	c.LoadExams(ctx, a.registry)
	if !selectExam(ctx, c, a, v.GetString("exam"), v.GetBool("create")) {
		return fmt.Errorf("exam %q not found", v.GetString("exam"))
	}
	c.LoadCourses(ctx, a.registry)
	if !selectCourse(ctx, c, a, v.GetString("course"), v.GetBool("create")) {
		return fmt.Errorf("course %q not found", v.GetString("course"))
	}
	c.SetSlot(v.GetString("slot"))
	c.SetPart(v.GetString("part"))
	c.ApplyPreset(preset.Types)

	var files []model.FileHandle
	for _, path := range args {
		fh, err := uploadLocal(a.blobs, path)
		if err != nil {
			for _, f := range files {
				_ = a.blobs.Delete(f.Key)
			}
			return err
		}
		files = append(files, fh)
	}
	c.SetFiles(files)

	req, err := c.Handoff()
	if err != nil {
		return err
	}
	res, err := a.extractor.Extract(ctx, req)
	c.ExtractionFinished(res, err)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// selectExam picks an exam by ID or case-insensitive name, creating it when
// create is set.
func selectExam(ctx context.Context, c *wizard.Controller, a *app, ref string, create bool) bool {
	for _, e := range c.Exams() {
		if e.ID == ref || strings.EqualFold(e.Name, ref) {
			c.SelectExam(e)
			return true
		}
	}
	if !create || !c.AddExam(ctx, a.registry, ref, "") {
		return false
	}
	exams := c.Exams()
	c.SelectExam(exams[len(exams)-1])
	return true
}

func selectCourse(ctx context.Context, c *wizard.Controller, a *app, ref string, create bool) bool {
	for _, course := range c.Courses() {
		if course.ID == ref || strings.EqualFold(course.Name, ref) {
			return c.SelectCourse(course) == nil
		}
	}
	if !create || !c.AddCourse(ctx, a.registry, ref, "") {
		return false
	}
	courses := c.Courses()
	return c.SelectCourse(courses[len(courses)-1]) == nil
}

func uploadLocal(blobs storage.BlobStore, path string) (model.FileHandle, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.FileHandle{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	fh, err := storage.Upload(blobs, path, f)
	if err != nil {
		return model.FileHandle{}, fmt.Errorf("store %s: %w", path, err)
	}
	return fh, nil
}

func logNotices(ctx context.Context, c *wizard.Controller) {
	for _, n := range c.DrainNotices() {
		msg := appI18n.Tn(ctx, n.ID, n.Data)
		if n.Level == wizard.LevelError {
			slog.Error(msg)
		} else {
			slog.Info(msg)
		}
	}
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd, os.Stderr)
	v := viperForCmd(cmd)

	a, err := openApp(context.Background(), v, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.exporter == nil {
		return fmt.Errorf("export needs an sql backend, got %q", v.GetString("backend"))
	}
	export, err := a.exporter.ExportCourse(context.Background(), v.GetString("course-id"))
	if err != nil {
		return fmt.Errorf("export course: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	slog.Info("exported questions", "course", export.Course.Name, "count", export.Count)
	return nil
}

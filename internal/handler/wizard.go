package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pavelanni/qextractor/internal/model"
	"github.com/pavelanni/qextractor/internal/presets"
	"github.com/pavelanni/qextractor/internal/storage"
	"github.com/pavelanni/qextractor/internal/wizard"
)

// mutate applies fn to the caller's wizard and redirects back to the page.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, fn func(c *wizard.Controller)) {
	if err := h.withWizard(w, r, fn); err != nil {
		slog.Error("failed to update wizard", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

func (h *Handler) handleSelectExam(w http.ResponseWriter, r *http.Request) {
	id := r.FormValue("exam_id")
	h.mutate(w, r, func(c *wizard.Controller) {
		c.SelectExamByID(id)
	})
}

func (h *Handler) handleCreateExam(w http.ResponseWriter, r *http.Request) {
	name, desc := r.FormValue("name"), r.FormValue("description")
	h.mutate(w, r, func(c *wizard.Controller) {
		c.AddExam(r.Context(), h.registry, name, desc)
	})
}

func (h *Handler) handleSelectCourse(w http.ResponseWriter, r *http.Request) {
	id := r.FormValue("course_id")
	h.mutate(w, r, func(c *wizard.Controller) {
		c.SelectCourseByID(id)
	})
}

func (h *Handler) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	name, desc := r.FormValue("name"), r.FormValue("description")
	h.mutate(w, r, func(c *wizard.Controller) {
		c.AddCourse(r.Context(), h.registry, name, desc)
	})
}

func (h *Handler) handleDetails(w http.ResponseWriter, r *http.Request) {
	slot, part := r.FormValue("slot"), r.FormValue("part")
	yearStr := strings.TrimSpace(r.FormValue("year"))
	h.mutate(w, r, func(c *wizard.Controller) {
		c.SetSlot(slot)
		c.SetPart(part)
		if yearStr == "" {
			return
		}
		year, err := strconv.Atoi(yearStr)
		if err != nil || year <= 0 {
			c.Notify(wizard.LevelError, "InvalidYear", nil)
			return
		}
		c.SetYear(year)
	})
}

var typeFields = []string{"correctMarks", "incorrectMarks", "skippedMarks", "partialMarks", "timeMinutes"}

// parseTypeConfig reads the five numeric fields. Blank fields stay undefined.
func parseTypeConfig(r *http.Request) (model.QuestionTypeConfig, error) {
	var vals [5]*float64
	for i, name := range typeFields {
		s := strings.TrimSpace(r.FormValue(name))
		if s == "" {
			continue
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return model.QuestionTypeConfig{}, fmt.Errorf("%s: %w", name, err)
		}
		vals[i] = &f
	}
	return model.QuestionTypeConfig{
		CorrectMarks:   vals[0],
		IncorrectMarks: vals[1],
		SkippedMarks:   vals[2],
		PartialMarks:   vals[3],
		TimeMinutes:    vals[4],
	}, nil
}

func (h *Handler) handleTypes(w http.ResponseWriter, r *http.Request) {
	label := r.FormValue("label")
	action := r.FormValue("action")
	cfg, parseErr := parseTypeConfig(r)
	h.mutate(w, r, func(c *wizard.Controller) {
		if action == "remove" {
			c.RemoveType(strings.TrimSpace(label))
			return
		}
		if parseErr != nil {
			slog.Debug("invalid question type config", "label", label, "error", parseErr)
			c.Notify(wizard.LevelError, "InvalidNumber", nil)
			return
		}
		if err := c.SetTypeConfig(label, cfg); err != nil {
			c.Reject(err)
		}
	})
}

func (h *Handler) handlePreset(w http.ResponseWriter, r *http.Request) {
	name := r.FormValue("preset")
	h.mutate(w, r, func(c *wizard.Controller) {
		p, ok := presets.Find(h.presets, name)
		if !ok {
			c.Notify(wizard.LevelError, "PresetNotFound", nil)
			return
		}
		c.ApplyPreset(p.Types)
		c.Notify(wizard.LevelSuccess, "PresetApplied", map[string]any{"Name": p.Title})
	})
}

var errNoFiles = errors.New("no PDF files in upload")

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadBytes)
	uploadErr := r.ParseMultipartForm(32 << 20)

	var handles []model.FileHandle
	if uploadErr == nil {
		handles, uploadErr = h.storeUploads(r.MultipartForm.File["files"])
	}
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}

	h.mutate(w, r, func(c *wizard.Controller) {
		var tooLarge *http.MaxBytesError
		switch {
		case !c.Visible(wizard.StepUpload):
			h.discardFiles(handles)
			c.Notify(wizard.LevelError, "UploadNotReady", nil)
		case errors.As(uploadErr, &tooLarge):
			slog.Warn("upload too large", "limit", tooLarge.Limit)
			c.Notify(wizard.LevelError, "UploadTooLarge", nil)
		case errors.Is(uploadErr, errNoFiles):
			c.Notify(wizard.LevelError, "NoFilesSelected", nil)
		case uploadErr != nil:
			c.UploadFailed(uploadErr)
		default:
			h.discardFiles(c.State().Files)
			c.SetFiles(handles)
			c.Notify(wizard.LevelSuccess, "FilesUploaded", map[string]any{"Count": len(handles)})
		}
	})
}

// storeUploads saves every PDF part. On failure nothing is kept.
func (h *Handler) storeUploads(parts []*multipart.FileHeader) ([]model.FileHandle, error) {
	var handles []model.FileHandle
	for _, fh := range parts {
		if !strings.EqualFold(filepath.Ext(fh.Filename), ".pdf") {
			slog.Info("ignoring non-PDF upload", "file", fh.Filename)
			continue
		}
		f, err := fh.Open()
		if err != nil {
			h.discardFiles(handles)
			return nil, err
		}
		handle, err := storage.Upload(h.blobs, fh.Filename, f)
		f.Close()
		if err != nil {
			h.discardFiles(handles)
			return nil, fmt.Errorf("store %s: %w", fh.Filename, err)
		}
		handles = append(handles, handle)
	}
	if len(handles) == 0 {
		return nil, errNoFiles
	}
	return handles, nil
}

func (h *Handler) discardFiles(files []model.FileHandle) {
	for _, f := range files {
		if err := h.blobs.Delete(f.Key); err != nil {
			slog.Warn("failed to remove upload", "file", f.Name, "error", err)
		}
	}
}

func (h *Handler) handleExtract(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(c *wizard.Controller) {
		c.Extract(r.Context(), h.extractor)
	})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(c *wizard.Controller) {
		h.discardFiles(c.State().Files)
		c.Reset()
	})
}

package artifact

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/tikgrab/tikgrab/internal/httputil"
	"github.com/tikgrab/tikgrab/internal/metrics"
	"github.com/tikgrab/tikgrab/internal/storage"
	"github.com/tikgrab/tikgrab/internal/validate"
)

const (
	maxSubmitBodyBytes = 8 << 10

	readyMessage            = "Video processed successfully. Initiating download."
	extractionFailedMessage = "Could not download or process video. It might be private, removed, geo-restricted, or TikTok changed its format. Please try another URL."
	notFoundMessage         = "File not found"
)

// Fetcher downloads a source URL into an output template and returns the
// realized file path.
type Fetcher interface {
	Fetch(ctx context.Context, url, outputTemplate string) (string, error)
}

// Scheduler takes ownership of an artifact's deletion.
type Scheduler interface {
	Schedule(id, path string, delay time.Duration)
}

// Locator resolves a client IP to a country code for logging.
type Locator interface {
	Country(ip string) string
}

type Handler struct {
	store     *storage.Dir
	fetcher   Fetcher
	scheduler Scheduler
	retention time.Duration
	locator   Locator
	metrics   metrics.Recorder
	newID     func() string
}

func NewHandler(store *storage.Dir, f Fetcher, s Scheduler, retention time.Duration) *Handler {
	return &Handler{
		store:     store,
		fetcher:   f,
		scheduler: s,
		retention: retention,
		metrics:   metrics.Noop{},
		newID:     uuid.NewString,
	}
}

func (h *Handler) SetLocator(l Locator) {
	h.locator = l
}

func (h *Handler) SetMetrics(m metrics.Recorder) {
	if m != nil {
		h.metrics = m
	}
}

type submitRequest struct {
	TikTokURL string `json:"tiktokUrl"`
	URL       string `json:"url"`
}

type submitResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	DownloadLink string `json:"downloadLink,omitempty"`
}

func writeSubmit(w http.ResponseWriter, status int, message string) {
	httputil.WriteJSON(w, status, submitResponse{Success: false, Message: message})
}

// Submit validates the posted URL, runs the extraction and answers with a
// link to the stored artifact.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := httputil.DecodeJSON(w, r, maxSubmitBodyBytes, &req); err != nil {
		h.metrics.IncSubmissions("invalid")
		writeSubmit(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	sourceURL := strings.TrimSpace(cmp.Or(req.TikTokURL, req.URL))
	if msg := validate.SourceURL(sourceURL); msg != "" {
		h.metrics.IncSubmissions("invalid")
		writeSubmit(w, http.StatusBadRequest, msg)
		return
	}

	id := h.newID()
	log := slog.With("id", id, "url", sourceURL)
	if h.locator != nil {
		if country := h.locator.Country(httputil.ClientIP(r)); country != "" {
			log = log.With("country", country)
		}
	}
	log.Info("artifact: received download request")

	start := time.Now()
	path, err := h.fetcher.Fetch(r.Context(), sourceURL, h.store.OutputTemplate(id))
	h.metrics.ObserveExtraction(time.Since(start).Seconds())
	if err == nil && !h.store.Owns(path, id) {
		err = fmt.Errorf("extractor reported a path outside the storage dir: %s", path)
	}
	if err == nil {
		path, err = h.store.Normalize(path)
	}
	if err != nil {
		removed := h.store.RemoveByID(id)
		log.Error("artifact: extraction failed", "error", err, "removed_partials", removed)
		h.metrics.IncSubmissions("extraction_failed")
		writeSubmit(w, http.StatusInternalServerError, extractionFailedMessage)
		return
	}

	h.scheduler.Schedule(id, path, h.retention)

	name := filepath.Base(path)
	if info, statErr := os.Stat(path); statErr == nil {
		log = log.With("size", humanize.Bytes(uint64(info.Size())))
	}
	log.Info("artifact: ready", "file", name, "expires_in", h.retention.String())
	h.metrics.IncSubmissions("ok")

	httputil.WriteJSON(w, http.StatusOK, submitResponse{
		Success:      true,
		Message:      readyMessage,
		DownloadLink: "/download/" + url.PathEscape(name),
	})
}

// Serve streams a stored artifact as an attachment.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	if msg := validate.ServedFilename(name); msg != "" {
		h.metrics.IncServed("invalid")
		httputil.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	f, info, err := h.store.Open(name)
	switch {
	case errors.Is(err, storage.ErrInvalidName):
		h.metrics.IncServed("invalid")
		httputil.WriteError(w, http.StatusBadRequest, "Invalid filename")
		return
	case errors.Is(err, storage.ErrNotFound):
		slog.Warn("artifact: requested file not found", "file", name)
		h.metrics.IncServed("not_found")
		httputil.WriteError(w, http.StatusNotFound, notFoundMessage)
		return
	case err != nil:
		slog.Error("artifact: failed to open file", "file", name, "error", err)
		h.metrics.IncServed("error")
		httputil.WriteError(w, http.StatusInternalServerError, "could not read file")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", sniffContentType(f))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Cache-Control", "no-store")

	slog.Info("artifact: serving file", "file", name, "size", humanize.Bytes(uint64(info.Size())))
	h.metrics.IncServed("ok")
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// sniffContentType inspects the file header and rewinds f.
func sniffContentType(f io.ReadSeeker) string {
	head := make([]byte, 261)
	n, _ := io.ReadFull(f, head)
	_, _ = f.Seek(0, io.SeekStart)

	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return "application/octet-stream"
	}
	return kind.MIME.Value
}

package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/snackattack-pos/api/internal/database"
	"github.com/snackattack-pos/api/internal/enum"
)

const maxGCashNumberLength = 30

var allowedQRExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// SettingsStore defines the database methods needed by settings handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	UpsertSetting(ctx context.Context, arg database.UpsertSettingParams) error
}

// SettingsHandler serves and updates the GCash payment details.
type SettingsHandler struct {
	store      SettingsStore
	qr         QREncoder
	uploadDir  string
	maxUpload  int64
	uploadPath string
}

// NewSettingsHandler creates a new SettingsHandler. Uploaded QR images are
// written to uploadDir and served by the router under /uploads/.
func NewSettingsHandler(store SettingsStore, qr QREncoder, uploadDir string, maxUpload int64) *SettingsHandler {
	return &SettingsHandler{
		store:      store,
		qr:         qr,
		uploadDir:  uploadDir,
		maxUpload:  maxUpload,
		uploadPath: "/uploads/",
	}
}

// RegisterPublicRoutes registers the read endpoints at /api/settings.
func (h *SettingsHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/gcash", h.GetGCash)
	r.Get("/gcash/qr.png", h.GCashQR)
}

type gcashResponse struct {
	Number string `json:"number"`
	QR     string `json:"qr"`
}

// --- Handlers ---

// GetGCash returns the GCash number and the uploaded QR image path.
func (h *SettingsHandler) GetGCash(w http.ResponseWriter, r *http.Request) {
	resp, err := h.loadGCash(r.Context())
	if err != nil {
		writeInternal(w, r, "load gcash settings", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateGCash accepts a multipart form with an optional "number" field and
// an optional "qr" image.
func (h *SettingsHandler) UpdateGCash(w http.ResponseWriter, r *http.Request) {
	// Leave headroom above the file limit for the other form parts.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+maxJSONBody)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusBadRequest, h.tooLargeMessage())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	number := strings.TrimSpace(r.FormValue("number"))
	if len(number) > maxGCashNumberLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("number must be at most %d characters", maxGCashNumberLength))
		return
	}

	var qrPath string
	file, header, err := r.FormFile("qr")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		writeError(w, http.StatusBadRequest, "invalid qr upload")
		return
	default:
		defer file.Close()
		if header.Size > h.maxUpload {
			writeError(w, http.StatusBadRequest, h.tooLargeMessage())
			return
		}
		ext := strings.ToLower(filepath.Ext(header.Filename))
		if ext == "" {
			ext = ".png"
		}
		if !allowedQRExtensions[ext] {
			writeError(w, http.StatusBadRequest, "QR image must be png, jpg, jpeg, gif or webp")
			return
		}
		if !isImage(file) {
			writeError(w, http.StatusBadRequest, "QR upload is not an image")
			return
		}
		name, err := h.saveUpload(file, "gcash_qr"+ext)
		if err != nil {
			writeInternal(w, r, "save gcash qr", err)
			return
		}
		qrPath = h.uploadPath + name
	}

	if number != "" {
		if err := h.store.UpsertSetting(r.Context(), database.UpsertSettingParams{
			Key:   enum.SettingGCashNumber,
			Value: number,
		}); err != nil {
			writeInternal(w, r, "save gcash number", err)
			return
		}
	}
	if qrPath != "" {
		if err := h.store.UpsertSetting(r.Context(), database.UpsertSettingParams{
			Key:   enum.SettingGCashQR,
			Value: qrPath,
		}); err != nil {
			writeInternal(w, r, "save gcash qr path", err)
			return
		}
	}

	resp, err := h.loadGCash(r.Context())
	if err != nil {
		writeInternal(w, r, "load gcash settings", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "number": resp.Number, "qr": resp.QR})
}

// GCashQR renders the configured GCash number as a PNG QR code.
func (h *SettingsHandler) GCashQR(w http.ResponseWriter, r *http.Request) {
	number, err := h.setting(r.Context(), enum.SettingGCashNumber)
	if err != nil {
		writeInternal(w, r, "load gcash number", err)
		return
	}
	if number == "" {
		writeError(w, http.StatusNotFound, "GCash number is not set")
		return
	}

	png, err := h.qr.PNG(number)
	if err != nil {
		writeInternal(w, r, "gcash qr", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// --- Helpers ---

func (h *SettingsHandler) loadGCash(ctx context.Context) (gcashResponse, error) {
	number, err := h.setting(ctx, enum.SettingGCashNumber)
	if err != nil {
		return gcashResponse{}, err
	}
	qr, err := h.setting(ctx, enum.SettingGCashQR)
	if err != nil {
		return gcashResponse{}, err
	}
	return gcashResponse{Number: number, QR: qr}, nil
}

// setting returns the value for key, or "" when it was never set.
func (h *SettingsHandler) setting(ctx context.Context, key string) (string, error) {
	v, err := h.store.GetSetting(ctx, key)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return v, err
}

// saveUpload writes src into a temp file and renames it over name, so a
// failed upload never leaves a truncated image behind.
func (h *SettingsHandler) saveUpload(src io.Reader, name string) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	tmp := filepath.Join(h.uploadDir, ".upload-"+uuid.NewString())
	dst, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("close upload: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(h.uploadDir, name)); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("rename upload: %w", err)
	}
	return name, nil
}

func (h *SettingsHandler) tooLargeMessage() string {
	return fmt.Sprintf("QR image must be at most %d MB", h.maxUpload>>20)
}

// isImage sniffs the first bytes of f and rewinds it.
func isImage(f io.ReadSeeker) bool {
	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return false
	}
	return strings.HasPrefix(http.DetectContentType(head[:n]), "image/")
}

package gateway

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"imagebot/internal/domain"
	"imagebot/internal/storage"
	"imagebot/pkg/zip"
)

// ServeFile serves a stored artifact after validating the presigned URL's
// expiry and signature.
func (a *App) ServeFile(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if err := a.Signer.Verify(key, r.URL.Query()); err != nil {
		switch {
		case errors.Is(err, storage.ErrURLExpired):
			http.Error(w, "link expired", http.StatusGone)
		default:
			http.Error(w, "forbidden", http.StatusForbidden)
		}
		return
	}
	data, err := a.Store.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		a.Log.Error().Err(err).Str("key", key).Msg("file read failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	_, _ = w.Write(data)
}

// Archive streams a zip of the request's kept artifacts.
func (a *App) Archive(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "request_id")
	if requestID == "" {
		http.Error(w, "request_id required", http.StatusBadRequest)
		return
	}
	images, err := a.Images.ListByRequest(r.Context(), requestID)
	if err != nil {
		a.Log.Error().Err(err).Str("request_id", requestID).Msg("archive listing failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	var assets []zip.Asset
	for _, img := range images {
		if img.Status != domain.ImageStatusKept {
			continue
		}
		data, err := a.Store.Get(r.Context(), img.StorageKey)
		if err != nil {
			a.Log.Warn().Err(err).Str("key", img.StorageKey).Msg("archive member read failed")
			continue
		}
		assets = append(assets, zip.Asset{
			Filename: path.Base(img.StorageKey),
			Data:     data,
		})
	}
	if len(assets) == 0 {
		http.Error(w, "no kept images", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", requestID+".zip"))
	_, _ = w.Write(zip.ArchiveAssets(assets))
}

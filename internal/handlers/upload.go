package handlers

import (
	"net/http"
)

const maxUploadBytes = 10 << 20 // 10MB

// UploadFile pushes an image to Cloudinary and returns its URL. The folder
// comes from the ?folder= query parameter, defaulting to "ripple".
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	if h.Uploads == nil {
		respondError(w, http.StatusServiceUnavailable, "Uploads are not configured")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "Failed to parse form")
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	folder := r.URL.Query().Get("folder")
	if folder == "" {
		folder = "ripple"
	}

	url, err := h.Uploads.UploadFileFromHeader(r.Context(), fileHeader, folder)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}

	respondOK(w, "File uploaded", map[string]any{"url": url})
}

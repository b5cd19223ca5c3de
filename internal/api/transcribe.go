package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kalambet/chatcal/internal/proxy"
)

const maxAudioSize = 25 << 20 // provider upload limit

// handleTranscribe forwards the multipart "file" field to the provider.
// Errors are plain text, matching what mobile clients display verbatim.
func handleTranscribe(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxAudioSize)

		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "No file provided", http.StatusBadRequest)
			return
		}
		defer file.Close()

		if !deps.Proxy.HasKey() {
			http.Error(w, "API key not configured", http.StatusInternalServerError)
			return
		}

		body, err := deps.Proxy.Transcribe(r.Context(), header.Filename, file, deps.TranscribeModel)
		if err != nil {
			var ue *proxy.UpstreamError
			if errors.As(err, &ue) {
				slog.Warn("transcription upstream error", "status", ue.Status)
				http.Error(w, fmt.Sprintf("API Error: %d %s", ue.Status, ue.Body), ue.Status)
				return
			}
			slog.Error("transcription failed", "error", err)
			http.Error(w, fmt.Sprintf("Server error: %v", err), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}
}

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"

	"mixdeck/playback"
	"mixdeck/session"
	"mixdeck/storage"
)

type errorResponse struct {
	Error string `json:"error"`
}

type uploadResponse struct {
	Success bool   `json:"success"`
	Key     string `json:"key"`
	Message string `json:"message"`
}

type deleteRequest struct {
	Key string `json:"key"`
}

type filesResponse struct {
	Files []storage.Object `json:"files"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type startResponse struct {
	SessionID string `json:"sessionId"`
}

type mixRequest struct {
	MixRatio *int `json:"mixRatio"`
}

type volumeRequest struct {
	MasterVolume *int `json:"masterVolume"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func (s *Server) libraryChanged(r *http.Request) {
	if s.onChange == nil {
		return
	}
	if err := s.onChange(r.Context()); err != nil {
		s.logger.Warn("Failed to refresh library after change", slog.Any("error", err))
	}
}

var audioExtensions = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
}

// audioContentType returns the declared type of an uploaded part, falling
// back to the file extension when the client sent none.
func audioContentType(declared, filename string) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		return mt
	}
	ext := strings.ToLower(path.Ext(filename))
	if mt, ok := audioExtensions[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		mt, _, _ = mime.ParseMediaType(mt)
		return mt
	}
	return declared
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	role, err := playback.ParseRole(r.FormValue("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid type")
		return
	}

	contentType := audioContentType(header.Header.Get("Content-Type"), header.Filename)
	if !strings.HasPrefix(contentType, "audio/") {
		writeError(w, http.StatusBadRequest, "File must be an audio file")
		return
	}

	key, err := s.library.Upload(r.Context(), role.String(), header.Filename, contentType, file, header.Size)
	if err != nil {
		s.logger.Error("Upload failed",
			slog.String("file", header.Filename),
			slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}

	s.libraryChanged(r)
	writeJSON(w, http.StatusOK, uploadResponse{Success: true, Key: key, Message: "File uploaded successfully"})
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	kind := ""
	if t := r.URL.Query().Get("type"); t != "" {
		role, err := playback.ParseRole(t)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid type")
			return
		}
		kind = role.String()
	}

	files, err := s.library.List(r.Context(), kind)
	if err != nil {
		s.logger.Error("List files failed", slog.String("type", kind), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Failed to list files")
		return
	}
	if files == nil {
		files = []storage.Object{}
	}
	writeJSON(w, http.StatusOK, filesResponse{Files: files})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		writeError(w, http.StatusBadRequest, "No key provided")
		return
	}

	if err := s.library.Delete(r.Context(), req.Key); err != nil {
		if errors.Is(err, storage.ErrInvalidKey) {
			writeError(w, http.StatusBadRequest, "Invalid key")
			return
		}
		s.logger.Error("Delete failed", slog.String("key", req.Key), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Failed to delete file")
		return
	}

	s.libraryChanged(r)
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "File deleted successfully"})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	id, err := s.player.Start()
	switch {
	case errors.Is(err, session.ErrAlreadyPlaying):
		writeError(w, http.StatusConflict, "Already playing")
	case err != nil:
		s.playbackError(w, "start", err)
	default:
		writeJSON(w, http.StatusOK, startResponse{SessionID: id.String()})
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	err := s.player.Stop()
	switch {
	case errors.Is(err, session.ErrNotPlaying):
		writeError(w, http.StatusConflict, "Not playing")
	case err != nil:
		s.playbackError(w, "stop", err)
	default:
		writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Playback stopped"})
	}
}

func (s *Server) handleMix(w http.ResponseWriter, r *http.Request) {
	var req mixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MixRatio == nil {
		writeError(w, http.StatusBadRequest, "mixRatio is required")
		return
	}
	if err := s.player.SetMixRatio(*req.MixRatio); err != nil {
		s.playbackError(w, "set mix ratio", err)
		return
	}
	s.handleState(w, r)
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MasterVolume == nil {
		writeError(w, http.StatusBadRequest, "masterVolume is required")
		return
	}
	if err := s.player.SetMasterVolume(*req.MasterVolume); err != nil {
		s.playbackError(w, "set master volume", err)
		return
	}
	s.handleState(w, r)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st, err := s.player.Status()
	if err != nil {
		s.playbackError(w, "status", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) playbackError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, playback.ErrLevelRange):
		writeError(w, http.StatusBadRequest, "Level must be between 0 and 100")
	case errors.Is(err, playback.ErrDestroyed), errors.Is(err, session.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "Engine is shut down")
	default:
		s.logger.Error("Playback request failed", slog.String("op", op), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Playback error")
	}
}

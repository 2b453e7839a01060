package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"time"

	"github.com/ahmethakanbesel/candle-csv/internal/apperror"
	"github.com/ahmethakanbesel/candle-csv/internal/auth"
	"github.com/ahmethakanbesel/candle-csv/internal/download"
	"github.com/ahmethakanbesel/candle-csv/internal/job"
)

const maxBodyBytes = 1 << 16

type handler struct {
	downloads *download.Service
	jobs      *job.Service
	sessions  *auth.Sessions
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Password string `json:"password"`
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil || !h.sessions.Enabled() {
		writeJSON(w, http.StatusOK, map[string]bool{"authRequired": false})
		return
	}

	var req loginRequest
	if err := decodeBody(w, r, &req, func(get func(string) string) { req.Password = get("password") }); err != nil {
		writeAppError(w, err)
		return
	}

	token, expires, err := h.sessions.Login(req.Password)
	if err != nil {
		writeAppError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "expiresAt": expires.UTC().Format(time.RFC3339)})
}

func (h *handler) logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *handler) listTimeframes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.downloads.Timeframes())
}

func (h *handler) submit(w http.ResponseWriter, r *http.Request) {
	var req download.SubmitRequest
	err := decodeBody(w, r, &req, func(get func(string) string) {
		req.Symbol = get("symbol")
		req.Timeframe = get("timeframe")
		req.Start = get("start")
		req.End = get("end")
	})
	if err != nil {
		writeAppError(w, err)
		return
	}

	j, err := h.downloads.Submit(r.Context(), req)
	if err != nil {
		writeAppError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/jobs/"+j.ID)
	writeJSON(w, http.StatusAccepted, download.SubmitResponse{JobID: j.ID})
}

func (h *handler) getJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobs.Get(r.Context(), job.GetJobRequest{ID: r.PathValue("id")})
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, j)
}

func (h *handler) listJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobs.List(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, jobs)
}

func (h *handler) cancelJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobs.Cancel(r.Context(), job.GetJobRequest{ID: r.PathValue("id")})
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, j)
}

func (h *handler) downloadFile(w http.ResponseWriter, r *http.Request) {
	file, err := h.downloads.Retrieve(r.Context(), job.GetJobRequest{ID: r.PathValue("id")})
	if err != nil {
		writeAppError(w, err)
		return
	}

	f, err := os.Open(file.Path)
	if err != nil {
		writeAppError(w, apperror.Wrap(apperror.NotFound, err, "file missing"))
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		writeAppError(w, fmt.Errorf("stat csv: %w", err))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Name}))
	http.ServeContent(w, r, file.Name, info.ModTime(), f)
}

// decodeBody fills dst from a JSON body, or calls fromForm with a getter
// over the form values for urlencoded and multipart submissions.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, fromForm func(get func(string) string)) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return apperror.Wrap(apperror.BadRequest, err, "invalid form body")
		}
		fromForm(r.PostFormValue)
		return nil
	default:
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			return apperror.Wrap(apperror.BadRequest, err, "invalid JSON body")
		}
		return nil
	}
}

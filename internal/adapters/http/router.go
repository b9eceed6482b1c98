package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/pdf-qa-assistant/internal/config"
	"github.com/kirillkom/pdf-qa-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-qa-assistant/internal/core/ports"
	"github.com/kirillkom/pdf-qa-assistant/internal/observability/metrics"
)

const (
	serviceName    = "api"
	rootMessage    = "PDF Q&A API is running. Use /upload-pdfs/ to upload PDFs and /ask-question/ to ask questions."
	uploadAccepted = "Files uploaded successfully. Processing started."
)

type JobService interface {
	ports.JobReader
	ports.JobCanceller
}

type Router struct {
	cfg      config.Config
	uploader ports.DocumentUploader
	answerer ports.QuestionAnswerer
	jobs     JobService

	metrics  *metrics.HTTPServerMetrics
	breakers func() map[string]string
}

type RouterOption func(*Router)

func WithMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(rt *Router) { rt.metrics = m }
}

// WithBreakerStates adds circuit breaker states to the health response.
func WithBreakerStates(states func() map[string]string) RouterOption {
	return func(rt *Router) { rt.breakers = states }
}

func NewRouter(
	cfg config.Config,
	uploader ports.DocumentUploader,
	answerer ports.QuestionAnswerer,
	jobs JobService,
	options ...RouterOption,
) *Router {
	rt := &Router{
		cfg:      cfg,
		uploader: uploader,
		answerer: answerer,
		jobs:     jobs,
	}
	for _, option := range options {
		option(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", rt.root)
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /upload-pdfs/{$}", rt.uploadPDFs)
	mux.HandleFunc("GET /processing-status/{$}", rt.processingStatus)
	mux.HandleFunc("GET /processing-status/{job_id}", rt.jobByID)
	mux.HandleFunc("POST /jobs/{job_id}/cancel", rt.cancelJob)
	mux.HandleFunc("POST /ask-question/{$}", rt.askQuestion)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, time.Duration(rt.cfg.APIBackpressureWaitMS)*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = corsMiddleware(handler, rt.cfg.CORSAllowedOrigins)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": rootMessage})
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{"status": "ok"}
	if rt.breakers != nil {
		if states := rt.breakers(); len(states) > 0 {
			payload["breakers"] = states
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

func (rt *Router) uploadPDFs(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(rt.cfg.MaxUploadMB) << 20
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "Upload exceeds the size limit")
			return
		}
		if !errors.Is(err, http.ErrNotMultipart) && !errors.Is(err, http.ErrMissingBoundary) {
			writeDetail(w, http.StatusBadRequest, "Invalid multipart form")
			return
		}
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	files, closeFiles, err := openUploadFiles(r.MultipartForm)
	defer closeFiles()
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := rt.uploader.Upload(r.Context(), files)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordUpload(serviceName, len(job.Files))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": uploadAccepted,
		"files":   job.Files,
		"status":  job.Status,
		"job_id":  job.ID,
	})
}

func openUploadFiles(form *multipart.Form) ([]domain.UploadFile, func(), error) {
	var closers []func() error
	closeAll := func() {
		for _, closeFn := range closers {
			_ = closeFn()
		}
	}
	if form == nil {
		return nil, closeAll, nil
	}

	headers := form.File["files"]
	files := make([]domain.UploadFile, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, file.Close)
		files = append(files, domain.UploadFile{Filename: header.Filename, Body: file})
	}
	return files, closeAll, nil
}

func (rt *Router) processingStatus(w http.ResponseWriter, r *http.Request) {
	job, err := rt.jobs.Current(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	payload := map[string]any{
		"status":  job.Status,
		"message": job.Message,
	}
	if job.ID != "" {
		payload["job_id"] = job.ID
	}
	writeJSON(w, http.StatusOK, payload)
}

func (rt *Router) jobByID(w http.ResponseWriter, r *http.Request) {
	job, err := rt.jobs.GetByID(r.Context(), r.PathValue("job_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (rt *Router) cancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	if err := rt.jobs.Cancel(r.Context(), jobID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "Cancellation requested.",
		"job_id":  jobID,
	})
}

func (rt *Router) askQuestion(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	question := r.FormValue("question")
	if strings.TrimSpace(question) == "" {
		writeDetail(w, http.StatusBadRequest, "Question must not be empty")
		return
	}

	answer, err := rt.answerer.Answer(r.Context(), question)
	var notReady *domain.NotReadyError
	if errors.As(err, &notReady) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"message": notReady.Error(),
			"status":  notReady.Status,
		})
		return
	}
	if err != nil {
		slog.Error("ask_question_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordAnswer(serviceName, len(answer.Sources), time.Since(start))
	}

	writeJSON(w, http.StatusOK, answer)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/flashgest/internal/chunker"
	"github.com/dgallion1/flashgest/internal/export"
	"github.com/dgallion1/flashgest/internal/generate"
	"github.com/dgallion1/flashgest/internal/parser"
	"github.com/dgallion1/flashgest/internal/pipeline"
	"github.com/dgallion1/flashgest/internal/qna"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename, data, status, err := s.readUpload(file, header)
	if err != nil {
		jsonError(w, err.Error(), status)
		return
	}

	opts, err := jobOptionsFromForm(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := pipeline.NewJob(filename, r.FormValue("title"), data, opts)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/jobs/%s", job.ID),
	})
}

func (s *Server) handleBatchJobs(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	opts, err := jobOptionsFromForm(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var results []map[string]any
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			results = append(results, map[string]any{
				"filename": sanitizeFilename(fh.Filename),
				"error":    "failed to open file",
			})
			continue
		}
		filename, data, _, err := s.readUpload(f, fh)
		f.Close()
		if err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    err.Error(),
			})
			continue
		}

		job := pipeline.NewJob(filename, "", data, opts)
		if err := s.orchestrator.Submit(job); err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    err.Error(),
			})
			continue
		}

		results = append(results, map[string]any{
			"filename": filename,
			"job_id":   job.ID,
			"status":   pipeline.StatusQueued,
			"poll_url": fmt.Sprintf("/api/jobs/%s", job.ID),
		})
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": results})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.jobFromPath(w, r)
	if job == nil {
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleJobChunks(w http.ResponseWriter, r *http.Request) {
	job := s.jobFromPath(w, r)
	if job == nil {
		return
	}
	snap := job.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id": snap.ID,
		"status": snap.Status,
		"chunks": job.Chunks(),
	})
}

func (s *Server) handleJobRecords(w http.ResponseWriter, r *http.Request) {
	job := s.jobFromPath(w, r)
	if job == nil {
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	snap := job.Snapshot()
	if !snap.Status.Done() {
		jsonError(w, fmt.Sprintf("job is still %s", snap.Status), http.StatusConflict)
		return
	}

	records := job.Records()
	if format == export.FormatJSON {
		if records == nil {
			records = []qna.Record{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"job_id":   snap.ID,
			"status":   snap.Status,
			"records":  records,
			"warnings": snap.Warnings,
		})
		return
	}

	name := strings.TrimSuffix(snap.Filename, filepath.Ext(snap.Filename)) + format.Extension()
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := export.Write(w, format, records); err != nil {
		s.log.Error("export failed", "job_id", snap.ID, "format", format, "error", err)
	}
}

func (s *Server) jobFromPath(w http.ResponseWriter, r *http.Request) *pipeline.Job {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
	}
	return job
}

// readUpload checks the extension and size of an uploaded file and reads it.
// On failure it returns the HTTP status to report.
func (s *Server) readUpload(file multipart.File, header *multipart.FileHeader) (string, []byte, int, error) {
	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		return filename, nil, http.StatusBadRequest, fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return filename, nil, http.StatusInternalServerError, fmt.Errorf("failed to read file")
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return filename, nil, http.StatusRequestEntityTooLarge, fmt.Errorf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)
	}
	return filename, data, http.StatusOK, nil
}

// jobOptionsFromForm reads the optional per-job overrides. Values that are
// present but malformed are rejected rather than ignored.
func jobOptionsFromForm(r *http.Request) (pipeline.JobOptions, error) {
	var (
		opts pipeline.JobOptions
		err  error
	)
	ints := []struct {
		key string
		dst *int
	}{
		{"start_page", &opts.StartPage},
		{"end_page", &opts.EndPage},
		{"min_tokens", &opts.Chunking.MinTokens},
		{"max_tokens", &opts.Chunking.MaxTokens},
		{"tokens_per_question", &opts.TokensPerQuestion},
		{"min_questions", &opts.MinQuestions},
		{"max_questions", &opts.MaxQuestions},
	}
	for _, f := range ints {
		if *f.dst, err = formInt(r, f.key); err != nil {
			return opts, err
		}
	}

	if v := r.FormValue("chunks"); v != "" {
		for _, part := range strings.Split(v, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return opts, fmt.Errorf("chunks: %q is not a chunk index", part)
			}
			opts.Chunks = append(opts.Chunks, n)
		}
	}

	if v := r.FormValue("chunk_only"); v != "" {
		if opts.ChunkOnly, err = strconv.ParseBool(v); err != nil {
			return opts, fmt.Errorf("chunk_only: %q is not a boolean", v)
		}
	}

	switch v := generate.Format(strings.ToLower(r.FormValue("prompt_format"))); v {
	case "", generate.FormatMarkers, generate.FormatJSON:
		opts.Format = v
	default:
		return opts, fmt.Errorf("prompt_format: unknown format %q", v)
	}

	if v := r.FormValue("chunk_texts"); v != "" {
		if err := json.Unmarshal([]byte(v), &opts.ChunkTexts); err != nil {
			return opts, fmt.Errorf("chunk_texts: expected a JSON object of chunk index to text: %w", err)
		}
	}

	if v := r.FormValue("responses"); v != "" {
		if err := json.Unmarshal([]byte(v), &opts.Responses); err != nil {
			return opts, fmt.Errorf("responses: expected a JSON object of chunk index to text: %w", err)
		}
	}
	return opts, nil
}

// chunkConfig merges request overrides onto the service defaults.
func chunkConfig(defaults chunker.Config, override chunker.Config) chunker.Config {
	if override.MinTokens > 0 {
		defaults.MinTokens = override.MinTokens
	}
	if override.MaxTokens > 0 {
		defaults.MaxTokens = override.MaxTokens
	}
	return defaults
}

func formInt(r *http.Request, key string) (int, error) {
	v := strings.TrimSpace(r.FormValue(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: %q is not a non-negative integer", key, v)
	}
	return n, nil
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}

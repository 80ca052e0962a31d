package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/dgallion1/flashgest/internal/chunker"
	"github.com/dgallion1/flashgest/internal/doctree"
	"github.com/dgallion1/flashgest/internal/generate"
	"github.com/dgallion1/flashgest/internal/pipeline"
	"github.com/dgallion1/flashgest/internal/qna"
	"github.com/dgallion1/flashgest/internal/structure"
)

// handleChunks parses an upload, or chunks a pasted "text" field, and
// returns the chunks synchronously.
func (s *Server) handleChunks(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	opts, err := jobOptionsFromForm(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	defaults := s.orchestrator.Defaults()
	chunkOpts := pipeline.ChunkOptions{
		StartPage:     opts.StartPage,
		EndPage:       opts.EndPage,
		HeadingMargin: defaults.HeadingMargin,
		Chunking:      chunkConfig(defaults.Chunking, opts.Chunking),
		Counter:       defaults.Counter,
	}
	if err := chunkOpts.Chunking.Validate(); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) && strings.TrimSpace(r.FormValue("text")) != "" {
		s.chunkPlainText(w, r.FormValue("text"), chunkOpts)
		return
	}
	if err != nil {
		jsonError(w, "file or text is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename, data, status, err := s.readUpload(file, header)
	if err != nil {
		jsonError(w, err.Error(), status)
		return
	}

	doc, err := pipeline.ParseFile(data, filename, defaults.Parser)
	if err != nil {
		s.log.Warn("parse failed", "filename", filename, "error", err)
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	res, err := pipeline.ChunkDocument(doc, chunkOpts)
	switch {
	case errors.Is(err, structure.ErrInvalidPageRange), errors.Is(err, chunker.ErrInvalidThresholds):
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	chunks := res.Chunks
	if chunks == nil {
		chunks = []doctree.Chunk{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"filename": filename,
		"title":    doc.Title,
		"pages":    doc.PageCount(),
		"blocks":   len(res.Blocks),
		"chunks":   chunks,
	})
}

// chunkPlainText chunks pasted or edited text, one block per paragraph.
func (s *Server) chunkPlainText(w http.ResponseWriter, text string, opts pipeline.ChunkOptions) {
	chunks, err := pipeline.ChunkPlainText(text, opts)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if chunks == nil {
		chunks = []doctree.Chunk{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chunks": chunks,
	})
}

type extractRequest struct {
	Text     string `json:"text"`
	Validate bool   `json:"validate"`
}

type extractResponse struct {
	Records  []qna.Record  `json:"records"`
	Warnings []qna.Warning `json:"warnings"`
	Dropped  int           `json:"dropped,omitempty"`
}

// handleExtract parses model output supplied in the body. JSON bodies use
// extractRequest; anything else is taken as the raw text.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes))
	if err != nil {
		jsonError(w, "failed to read body: "+err.Error(), http.StatusBadRequest)
		return
	}

	req := extractRequest{Text: string(body)}
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "application/json" {
		req = extractRequest{}
		if err := json.Unmarshal(body, &req); err != nil {
			jsonError(w, "invalid json: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	if r.URL.Query().Get("validate") == "true" {
		req.Validate = true
	}

	res := s.extractor.Extract(req.Text)
	out := extractResponse{Records: res.Records, Warnings: res.Warnings}
	if req.Validate {
		out.Records, out.Dropped = generate.FilterRecords(out.Records)
	}
	if out.Records == nil {
		out.Records = []qna.Record{}
	}
	if out.Warnings == nil {
		out.Warnings = []qna.Warning{}
	}
	writeJSON(w, http.StatusOK, out)
}

package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgallion1/flashgest/internal/chunker"
	"github.com/dgallion1/flashgest/internal/doctree"
	"github.com/dgallion1/flashgest/internal/generate"
	"github.com/dgallion1/flashgest/internal/qna"
	"github.com/google/uuid"
)

// JobStatus represents the state of a flashcard job.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusParsing     JobStatus = "parsing"
	StatusStructuring JobStatus = "structuring"
	StatusChunking    JobStatus = "chunking"
	StatusGenerating  JobStatus = "generating"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
	StatusPartial     JobStatus = "partial"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusPartial
}

// JobOptions are the per-job knobs a caller may set at submission.
type JobOptions struct {
	// StartPage and EndPage select a 1-based inclusive page range. Zero
	// means the first or last page respectively.
	StartPage int `json:"start_page,omitempty"`
	EndPage   int `json:"end_page,omitempty"`

	Chunking chunker.Config `json:"-"`

	TokensPerQuestion int `json:"tokens_per_question,omitempty"`
	MinQuestions      int `json:"min_questions,omitempty"`
	MaxQuestions      int `json:"max_questions,omitempty"`

	// Chunks restricts generation to these chunk indices. Empty means all.
	Chunks []int `json:"chunks,omitempty"`

	// ChunkTexts replaces the text of chunks by index before generation.
	// Chunks without an entry, or with a blank one, keep their text.
	ChunkTexts map[int]string `json:"-"`

	// Responses supplies hand-written model output per chunk index. When
	// set, the job uses a ManualGenerator instead of the configured one.
	Responses map[int]string `json:"-"`

	// ChunkOnly stops the job after chunking.
	ChunkOnly bool `json:"chunk_only,omitempty"`

	Format generate.Format `json:"format,omitempty"`
}

// Job tracks the state of a single document run.
type Job struct {
	mu sync.Mutex

	ID string `json:"job_id"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`
	Title    string    `json:"title"`
	Options  JobOptions

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	chunks   []doctree.Chunk
	records  map[int][]qna.Record
	warnings []ChunkWarning
	errors   []string
}

// NewJob returns a queued job with a fresh ID.
func NewJob(filename, title string, data []byte, opts JobOptions) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Status:    StatusQueued,
		Phase:     "queued",
		Filename:  filename,
		Title:     title,
		Options:   opts,
		CreatedAt: now,
		UpdatedAt: now,
		fileData:  data,
	}
}

// Progress tracks processing progress.
type Progress struct {
	TotalPages      int      `json:"total_pages"`
	TotalChunks     int      `json:"total_chunks"`
	ChunksSelected  int      `json:"chunks_selected"`
	ChunksProcessed int      `json:"chunks_processed"`
	Records         int      `json:"records"`
	RecordsDropped  int      `json:"records_dropped"`
	Errors          []string `json:"errors"`
}

// ChunkWarning is an extraction warning tagged with its chunk.
type ChunkWarning struct {
	Chunk int `json:"chunk"`
	qna.Warning
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.updatedAt()) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

func (j *Job) updatedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.UpdatedAt
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// CurrentStatus returns the job status.
func (j *Job) CurrentStatus() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Status
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// HasErrors reports whether any error was recorded.
func (j *Job) HasErrors() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.errors) > 0
}

// IncrChunksProcessed atomically increments chunks processed.
func (j *Job) IncrChunksProcessed() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.ChunksProcessed++
	j.UpdatedAt = time.Now()
}

// SetTotalPages records the source page count.
func (j *Job) SetTotalPages(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalPages = n
	j.UpdatedAt = time.Now()
}

// SetChunks stores the chunk list and its size.
func (j *Job) SetChunks(chunks []doctree.Chunk) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.chunks = chunks
	j.Progress.TotalChunks = len(chunks)
	j.UpdatedAt = time.Now()
}

// Chunks returns the chunk list produced for the job.
func (j *Job) Chunks() []doctree.Chunk {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]doctree.Chunk, len(j.chunks))
	copy(out, j.chunks)
	return out
}

// SetChunksSelected records how many chunks will be sent for generation.
func (j *Job) SetChunksSelected(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.ChunksSelected = n
	j.UpdatedAt = time.Now()
}

// SetChunkResult stores the records and warnings produced for one chunk.
func (j *Job) SetChunkResult(index int, records []qna.Record, warnings []qna.Warning, dropped int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.records == nil {
		j.records = make(map[int][]qna.Record)
	}
	j.records[index] = records
	for _, w := range warnings {
		j.warnings = append(j.warnings, ChunkWarning{Chunk: index, Warning: w})
	}
	j.Progress.Records += len(records)
	j.Progress.RecordsDropped += dropped
	j.UpdatedAt = time.Now()
}

// Records returns all records in chunk order.
func (j *Job) Records() []qna.Record {
	j.mu.Lock()
	defer j.mu.Unlock()
	indices := make([]int, 0, len(j.records))
	for i := range j.records {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	var out []qna.Record
	for _, i := range indices {
		out = append(out, j.records[i]...)
	}
	return out
}

// Warnings returns extraction warnings ordered by chunk.
func (j *Job) Warnings() []ChunkWarning {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]ChunkWarning, len(j.warnings))
	copy(out, j.warnings)
	sort.SliceStable(out, func(a, b int) bool { return out[a].Chunk < out[b].Chunk })
	return out
}

// SetFileData sets the raw file bytes for processing.
func (j *Job) SetFileData(data []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = data
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// releaseFileData drops the upload once it has been parsed.
func (j *Job) releaseFileData() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
}

func (j *Job) setTitle(title string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Title = title
}

// SetContentHash records the hash of the parsed document text.
func (j *Job) SetContentHash(h string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ContentHash = h
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string         `json:"job_id"`
	Status      JobStatus      `json:"status"`
	Phase       string         `json:"phase"`
	Filename    string         `json:"filename"`
	Title       string         `json:"title"`
	ContentHash string         `json:"content_hash,omitempty"`
	Progress    Progress       `json:"progress"`
	Warnings    []ChunkWarning `json:"warnings"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.errors))
	copy(errs, j.errors)
	warnings := make([]ChunkWarning, len(j.warnings))
	copy(warnings, j.warnings)
	sort.SliceStable(warnings, func(a, b int) bool { return warnings[a].Chunk < warnings[b].Chunk })

	p := j.Progress
	p.Errors = errs
	return JobSnapshot{
		ID:          j.ID,
		Status:      j.Status,
		Phase:       j.Phase,
		Filename:    j.Filename,
		Title:       j.Title,
		ContentHash: j.ContentHash,
		Progress:    p,
		Warnings:    warnings,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}

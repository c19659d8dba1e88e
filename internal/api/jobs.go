package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/visualix/visualix/internal/core"
	"github.com/visualix/visualix/internal/service/jobs"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// UploadResponse is returned after a successful upload.
type UploadResponse struct {
	JobID    string              `json:"job_id"`
	Status   core.JobStatus      `json:"status"`
	Filename string              `json:"filename"`
	Metadata *core.VideoMetadata `json:"metadata,omitempty"`
	Message  string              `json:"message"`
}

// ProcessRequest starts processing of an uploaded video.
type ProcessRequest struct {
	Prompt string `json:"prompt"`
}

// ProcessResponse reports the accepted plan.
type ProcessResponse struct {
	JobID    string             `json:"job_id"`
	Status   core.JobStatus     `json:"status"`
	Plan     *core.WorkflowPlan `json:"workflow_plan"`
	Warnings []string           `json:"warnings"`
	Message  string             `json:"message"`
}

// JobListResponse is a page of jobs.
type JobListResponse struct {
	Jobs     []*core.JobInfo `json:"jobs"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// JobStatusResponse wraps a status report with the download location.
type JobStatusResponse struct {
	*jobs.StatusReport
	OutputURL string `json:"output_url,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Multipart overhead beyond the file itself is small; the file manager
	// enforces the exact limit while streaming.
	if limit := s.deps.Files.MaxFileSize(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	}

	reader, err := r.MultipartReader()
	if err != nil {
		respondError(w, http.StatusBadRequest, "expected multipart/form-data upload")
		return
	}

	var (
		prompt string
		job    *core.JobInfo
	)
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.respondUploadError(w, r, err)
			return
		}
		switch part.FormName() {
		case "prompt":
			b, _ := io.ReadAll(io.LimitReader(part, int64(core.MaxPromptLength*4)))
			prompt = string(b)
		case "file":
			if job != nil {
				respondError(w, http.StatusBadRequest, "only one file may be uploaded per request")
				return
			}
			job, err = s.createFromPart(r, part, prompt)
			if err != nil {
				s.respondUploadError(w, r, err)
				return
			}
		}
		_ = part.Close()
	}

	if job == nil {
		respondError(w, http.StatusBadRequest, "no file provided")
		return
	}
	respondJSON(w, http.StatusCreated, UploadResponse{
		JobID:    job.ID,
		Status:   job.Status,
		Filename: job.OriginalFilename,
		Metadata: job.Metadata,
		Message:  "Video uploaded successfully",
	})
}

func (s *Server) createFromPart(r *http.Request, part *multipart.Part, prompt string) (*core.JobInfo, error) {
	name := part.FileName()
	if name == "" {
		return nil, core.ErrValidation("MISSING_FILENAME", "uploaded file has no filename")
	}
	return s.deps.Jobs.Create(r.Context(), jobs.CreateRequest{
		Filename: name,
		Body:     part,
		Prompt:   prompt,
	})
}

func (s *Server) respondUploadError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		respondError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	if _, ok := httpStatusForDomainError(err); ok {
		s.respondDomainError(w, r, err)
		return
	}
	respondError(w, http.StatusBadRequest, "invalid upload: "+err.Error())
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	var req ProcessRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			s.respondDomainError(w, r, err)
			return
		}
	}

	res, err := s.deps.Jobs.Process(r.Context(), jobID, req.Prompt)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, ProcessResponse{
		JobID:    jobID,
		Status:   res.Job.Status,
		Plan:     res.Plan,
		Warnings: res.Warnings,
		Message:  "Video processing started",
	})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"), defaultPageSize)
	if err != nil || limit < 1 || limit > maxPageSize {
		respondError(w, http.StatusBadRequest, "limit must be between 1 and 100")
		return
	}
	offset, err := queryInt(q.Get("offset"), 0)
	if err != nil || offset < 0 {
		respondError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	list, total, err := s.deps.Jobs.List(r.Context(), core.JobFilter{
		Status: core.JobStatus(strings.ToLower(q.Get("status"))),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	if list == nil {
		list = []*core.JobInfo{}
	}
	respondJSON(w, http.StatusOK, JobListResponse{
		Jobs:     list,
		Total:    total,
		Page:     offset/limit + 1,
		PageSize: limit,
	})
}

func queryInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.deps.Jobs.Get(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	report, err := s.deps.Jobs.Status(r.Context(), jobID)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	resp := JobStatusResponse{StatusReport: report}
	if report.Status == core.JobCompleted && report.OutputPath != "" {
		resp.OutputURL = "/api/v1/jobs/" + jobID + "/result"
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Jobs.Cancel(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := s.deps.Jobs.Delete(r.Context(), jobID); err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"job_id":  jobID,
		"message": "Job and associated files deleted successfully",
	})
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	job, err := s.deps.Jobs.Get(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	if job.Status != core.JobCompleted {
		respondError(w, http.StatusConflict, "job is not completed; current status: "+string(job.Status))
		return
	}
	if job.OutputPath == "" {
		respondError(w, http.StatusNotFound, "job has no output file")
		return
	}

	f, err := os.Open(job.OutputPath)
	if err != nil {
		respondError(w, http.StatusNotFound, "output file not found")
		return
	}
	defer func() { _ = f.Close() }()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		respondError(w, http.StatusNotFound, "output file not found")
		return
	}

	name := "processed_" + strings.TrimSuffix(job.OriginalFilename, filepath.Ext(job.OriginalFilename)) + filepath.Ext(job.OutputPath)
	w.Header().Set("Content-Disposition", `attachment; filename="`+strings.ReplaceAll(name, `"`, "")+`"`)
	w.Header().Set("Content-Type", "video/"+strings.TrimPrefix(strings.ToLower(filepath.Ext(job.OutputPath)), "."))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Jobs.Stats(r.Context())
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	resp := map[string]interface{}{"jobs": st}
	if fs, err := s.deps.Files.Stats(); err == nil {
		resp["storage"] = fs
	}
	if s.deps.Cleaner != nil {
		resp["cleanup"] = s.deps.Cleaner.Stats()
	}
	respondJSON(w, http.StatusOK, resp)
}

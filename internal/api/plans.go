package api

import (
	"net/http"

	"github.com/visualix/visualix/internal/core"
)

// AnalyzeRequest asks for a plan without running it.
type AnalyzeRequest struct {
	Prompt   string              `json:"prompt"`
	Metadata *core.VideoMetadata `json:"video_metadata,omitempty"`
	JobID    string              `json:"job_id,omitempty"`
}

// PlanRequest carries a plan to explain or validate.
type PlanRequest struct {
	Plan *core.WorkflowPlan `json:"workflow_plan"`
}

// PlanResponse is a plan with its warnings and explanation.
type PlanResponse struct {
	Plan        *core.WorkflowPlan `json:"workflow_plan"`
	Warnings    []string           `json:"warnings"`
	Explanation string             `json:"explanation,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	meta := req.Metadata
	if meta == nil && req.JobID != "" {
		job, err := s.deps.Jobs.Get(r.Context(), req.JobID)
		if err != nil {
			s.respondDomainError(w, r, err)
			return
		}
		meta = job.Metadata
	}

	plan, warnings, err := s.deps.Jobs.Analyze(r.Context(), req.Prompt, meta)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, PlanResponse{Plan: plan, Warnings: nonNil(warnings)})
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	plan, ok := s.readPlan(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, PlanResponse{
		Plan:        plan,
		Warnings:    nonNil(s.deps.Planner.Validate(plan)),
		Explanation: s.deps.Planner.Explain(r.Context(), plan),
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	plan, ok := s.readPlan(w, r)
	if !ok {
		return
	}
	warnings := nonNil(s.deps.Planner.Validate(plan))
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"valid":    len(warnings) == 0,
		"warnings": warnings,
	})
}

func (s *Server) readPlan(w http.ResponseWriter, r *http.Request) (*core.WorkflowPlan, bool) {
	var req PlanRequest
	if err := decodeJSON(r, &req); err != nil {
		s.respondDomainError(w, r, err)
		return nil, false
	}
	if req.Plan == nil {
		respondError(w, http.StatusBadRequest, "workflow_plan is required")
		return nil, false
	}
	return req.Plan, true
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

package models

import "time"

// StageResult is one entry in a request's decision trail.
type StageResult struct {
	Stage   string `json:"stage"`
	Allowed bool   `json:"allowed"`
	Detail  string `json:"detail,omitempty"`
}

// RequestContext is the ephemeral aggregate passed through the pipeline.
// Tenant and Principal are nil until their stages have run.
type RequestContext struct {
	Tenant    *Tenant
	Principal *Principal
	Method    string
	Route     string
	ClientIP  string
	StartedAt time.Time
	Trail     []StageResult
}

// Record appends a stage outcome to the decision trail.
func (rc *RequestContext) Record(stage string, allowed bool, detail string) {
	rc.Trail = append(rc.Trail, StageResult{Stage: stage, Allowed: allowed, Detail: detail})
}

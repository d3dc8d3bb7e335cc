package models

// Tally aggregates the outcomes of a feed run for one target.
type Tally struct {
	Target     string `json:"target"`
	Total      int    `json:"total"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`

	// Skipped counts attempts never started because the run was cancelled.
	Skipped int `json:"skipped"`
}

// Attempted returns how many attempts actually ran.
func (t Tally) Attempted() int {
	return t.Successful + t.Failed
}

// Progress is a live view of a target's tally while it is being fed.
type Progress struct {
	Tally
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the response for GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Targets int    `json:"targets"`
	Running int    `json:"running"`
}

// ProgressResponse wraps progress snapshots returned by the status API.
type ProgressResponse struct {
	Success  bool         `json:"success"`
	Progress []Progress   `json:"progress,omitempty"`
	Error    *ErrorDetail `json:"error,omitempty"`
}

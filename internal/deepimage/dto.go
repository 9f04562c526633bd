package deepimage

// StatusComplete is the only status the service reports for a finished job.
const StatusComplete = "complete"

// Parameters is the JSON document sent in the `parameters` form field.
type Parameters struct {
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	Background Background `json:"background"`
}

// Background carries the background-generation directive.
type Background struct {
	Generate Generate `json:"generate"`
}

// Generate describes the scene to paint around the preserved face.
type Generate struct {
	Description string `json:"description"`
	AdapterType string `json:"adapter_type"`
	FaceID      bool   `json:"face_id"`
}

// Result is the body returned by both the submission and the status endpoints.
// Job is only set on a pending submission; ResultURL only once complete.
type Result struct {
	Status    string `json:"status"`
	Job       string `json:"job,omitempty"`
	ResultURL string `json:"result_url,omitempty"`
}

// Complete reports whether the job finished.
func (r *Result) Complete() bool {
	return r != nil && r.Status == StatusComplete
}

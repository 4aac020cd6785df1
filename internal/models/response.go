package models

import "time"

// HealthResponse is the body of GET /health. LastReading is the newest
// stored reading and is omitted when the store is empty or unreachable.
type HealthResponse struct {
	Status      string     `json:"status"`
	Version     string     `json:"version"`
	Timestamp   string     `json:"timestamp"`
	Uptime      string     `json:"uptime"`
	LastReading *time.Time `json:"lastReading,omitempty"`
	Store       string     `json:"store"`
}

// ErrorResponse wraps every non-2xx API body
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Path    string                 `json:"path,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

package models

// IngestRequest is the object form of a POST /v1/readings body
type IngestRequest struct {
	Readings []Reading `json:"readings"`
}

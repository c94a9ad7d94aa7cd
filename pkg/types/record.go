package types

import "time"

// RecordStatus represents the lifecycle state of an address record
type RecordStatus string

const (
	StatusPending  RecordStatus = "pending"
	StatusAccepted RecordStatus = "accepted"
	StatusRejected RecordStatus = "rejected"
)

// RecordSource represents where an address record came from
type RecordSource string

const (
	SourceModel     RecordSource = "model"
	SourceSynthetic RecordSource = "synthetic"
)

// AddressRecord represents a single candidate address produced by a
// generation pass. Records are immutable once built.
type AddressRecord struct {
	Address   string       `json:"address"`
	LatencyMs int          `json:"latency_ms"`
	Provider  string       `json:"provider"`
	Status    RecordStatus `json:"status"`
	Source    RecordSource `json:"source"`
	PassID    string       `json:"pass_id,omitempty"`
	Timestamp string       `json:"timestamp,omitempty"` // RFC3339 format date-time
}

// Validate checks if the record has all required fields populated
func (r *AddressRecord) Validate() error {
	if r.Address == "" {
		return &ValidationError{Field: "address", Message: "address is required"}
	}
	if r.Provider == "" {
		return &ValidationError{Field: "provider", Message: "provider is required"}
	}
	if r.Status == "" {
		return &ValidationError{Field: "status", Message: "status is required"}
	}
	return nil
}

// SetTimestamp sets the timestamp from a time.Time value
func (r *AddressRecord) SetTimestamp(t time.Time) {
	r.Timestamp = t.Format(time.RFC3339)
}

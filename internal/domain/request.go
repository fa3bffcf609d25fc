package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// SeriesInput is one temperature source inside a comparison request: a wide
// day-by-month table, stacked rows, or both.
type SeriesInput struct {
	Name    string       `json:"name"`
	Year    int          `json:"year,omitempty"`
	Table   *RawTable    `json:"table,omitempty"`
	Schema  *TableSchema `json:"schema,omitempty"`
	Records []LongRow    `json:"records,omitempty"`
}

// Empty reports whether the input carries no data at all.
func (in SeriesInput) Empty() bool {
	return (in.Table == nil || len(in.Table.Rows) == 0) && len(in.Records) == 0
}

// ComparisonRequest asks which candidate series is closest to the target.
type ComparisonRequest struct {
	ID         string        `json:"id,omitempty"`
	Target     SeriesInput   `json:"target"`
	Candidates []SeriesInput `json:"candidates"`
	Metric     string        `json:"metric,omitempty"`
}

// Validate checks the request shape before any series is built.
func (r ComparisonRequest) Validate() error {
	if r.Target.Empty() {
		return fmt.Errorf("target %q: %w", r.Target.Name, ErrEmptyInput)
	}
	if len(r.Candidates) == 0 {
		return fmt.Errorf("request %s: no candidates", r.ID)
	}
	if r.Metric != "" {
		if _, err := ParseMetric(r.Metric); err != nil {
			return err
		}
	}
	return nil
}

// ParseComparisonRequest decodes a source message. A request without an id
// takes the message key, or a hash of the payload when there is no key.
func ParseComparisonRequest(raw RawEvent) (ComparisonRequest, error) {
	var req ComparisonRequest
	if err := json.Unmarshal(raw.Value, &req); err != nil {
		return ComparisonRequest{}, fmt.Errorf("parse comparison request: %w", err)
	}
	if req.ID == "" {
		req.ID = strings.TrimSpace(string(raw.Key))
	}
	if req.ID == "" {
		req.ID = generateID(raw.Value)
	}
	if req.Target.Name == "" {
		req.Target.Name = "target"
	}
	for i := range req.Candidates {
		if req.Candidates[i].Name == "" {
			req.Candidates[i].Name = fmt.Sprintf("candidate-%d", i+1)
		}
	}
	if err := req.Validate(); err != nil {
		return ComparisonRequest{}, err
	}
	return req, nil
}

// generateID derives a deterministic request ID so replays of the same payload
// produce the same report key.
func generateID(payload []byte) string {
	hash := sha256.Sum256(payload)
	return "cmp-" + hex.EncodeToString(hash[:8])
}

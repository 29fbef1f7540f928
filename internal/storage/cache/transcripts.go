package cache

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dotcommander/cosmos-agent/internal/agent"
)

// Transcripts stores conversation reports keyed by run ID.
type Transcripts struct {
	cache *Cache[agent.Report]
}

// NewTranscripts opens the transcript cache under dir.
func NewTranscripts(dir string) (*Transcripts, error) {
	c, err := New[agent.Report](dir, TranscriptCache)
	if err != nil {
		return nil, err
	}
	return &Transcripts{cache: c}, nil
}

// Write stores report under its run ID.
func (t *Transcripts) Write(report agent.Report) error {
	if err := t.cache.Write(report.Run.ID, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}

// Read loads the report stored for runID.
func (t *Transcripts) Read(runID string) (agent.Report, error) {
	var report agent.Report
	if err := t.cache.Read(runID, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&report)
	}); err != nil {
		return agent.Report{}, fmt.Errorf("read transcript: %w", err)
	}
	return report, nil
}

// Delete removes the report stored for runID.
func (t *Transcripts) Delete(runID string) error {
	if err := t.cache.Delete(runID); err != nil {
		return fmt.Errorf("delete transcript: %w", err)
	}
	return nil
}

// Exists reports whether a report is stored for runID.
func (t *Transcripts) Exists(runID string) bool { return t.cache.Exists(runID) }

// RunIDs lists the run IDs with a stored report.
func (t *Transcripts) RunIDs() ([]string, error) { return t.cache.IDs() }

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ManifestName is the artifact describing the latest run.
const ManifestName = "manifest.json"

// Status is the outcome of one step.
type Status string

const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Manifest records what a run produced.
type Manifest struct {
	RunID       string       `json:"runId"`
	GeneratedAt time.Time    `json:"generatedAt"`
	DataYear    int          `json:"dataYear"`
	Steps       []StepResult `json:"steps"`
}

// StepResult is the manifest entry of one step.
type StepResult struct {
	Name       string     `json:"name"`
	Status     Status     `json:"status"`
	DurationMs int64      `json:"durationMs"`
	Error      string     `json:"error,omitempty"`
	Artifacts  []Artifact `json:"artifacts"`
}

// WriteManifest writes m as ManifestName. The manifest itself is not
// recorded as a step artifact.
func (s *Sink) WriteManifest(m *Manifest) error {
	data, err := marshalCompact(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	tmp := s.Path("." + ManifestName + ".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, s.Path(ManifestName)); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a manifest from path.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &m, nil
}

// ManifestReadiness reports ready once a run has published a manifest to the
// output directory.
type ManifestReadiness struct {
	Path string
}

// CheckReadiness returns nil if the manifest exists and decodes, or an error
// describing why the artifacts are not yet servable.
func (m ManifestReadiness) CheckReadiness(_ context.Context) error {
	if _, err := ReadManifest(m.Path); err != nil {
		return fmt.Errorf("no pipeline run published yet: %w", err)
	}
	return nil
}

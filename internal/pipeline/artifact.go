package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/couchcryptid/civic-data-etl/internal/observability"
)

// Artifact is one file written to the output directory.
type Artifact struct {
	Name  string `json:"name"`
	Bytes int64  `json:"bytes"`
}

// Sink writes artifacts into the output directory. Each artifact is written
// to a temporary file and renamed into place.
type Sink struct {
	dir     string
	metrics *observability.Metrics

	mu      sync.Mutex
	pending []Artifact
}

// NewSink creates dir if needed and returns a Sink writing into it.
func NewSink(dir string, metrics *observability.Metrics) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Sink{dir: dir, metrics: metrics}, nil
}

// Dir returns the output directory.
func (s *Sink) Dir() string { return s.dir }

// Path returns the output path of an artifact.
func (s *Sink) Path(name string) string { return filepath.Join(s.dir, name) }

// WriteJSON encodes v compactly, without HTML escaping, as the artifact name.
func (s *Sink) WriteJSON(name string, v any) error {
	data, err := marshalCompact(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return s.write(name, bytes.NewReader(data))
}

// Copy duplicates an already written artifact under a new name.
func (s *Sink) Copy(from, to string) error {
	f, err := os.Open(s.Path(from))
	if err != nil {
		return fmt.Errorf("copy %s: %w", from, err)
	}
	defer f.Close()
	return s.write(to, f)
}

// Take returns the artifacts written since the previous call.
func (s *Sink) Take() []Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	if out == nil {
		out = []Artifact{}
	}
	return out
}

func (s *Sink) write(name string, r io.Reader) error {
	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), s.Path(name)); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	s.metrics.ArtifactBytes.WithLabelValues(name).Set(float64(n))
	s.mu.Lock()
	s.pending = append(s.pending, Artifact{Name: name, Bytes: n})
	s.mu.Unlock()
	return nil
}

func marshalCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

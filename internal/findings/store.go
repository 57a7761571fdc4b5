package findings

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultFileName is the findings log inside <artifacts>/reports.
const DefaultFileName = "phase2_findings.jsonl"

// Store appends Findings as JSON lines. Prior lines are never rewritten.
type Store struct {
	path string
}

// NewStore returns a Store writing to path. The parent directory is created
// on first append.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// ReportPath returns the default findings log under an artifacts root.
func ReportPath(artifactsRoot string) string {
	return filepath.Join(artifactsRoot, "reports", DefaultFileName)
}

// Path returns the log file path.
func (s *Store) Path() string {
	return s.path
}

// Append writes f as one line. The write is a single O_APPEND write under an
// exclusive advisory lock, so a torn line cannot interleave with another
// harness process sharing the same artifacts root.
func (s *Store) Append(f *Finding) error {
	if f == nil {
		return errors.New("nil finding")
	}
	line, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to encode finding: %w", err)
	}
	line = append(line, '\n')

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create findings directory: %w", err)
	}
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open findings log: %w", err)
	}
	defer file.Close()

	if err := lockFile(file); err != nil {
		return fmt.Errorf("failed to lock findings log: %w", err)
	}
	defer unlockFile(file)

	if _, err := file.Write(line); err != nil {
		return fmt.Errorf("failed to append finding: %w", err)
	}
	return file.Sync()
}

// ReadAll decodes every Finding in the log, oldest first. A missing file is
// an empty log.
func (s *Store) ReadAll() ([]Finding, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read findings log: %w", err)
	}
	var out []Finding
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var f Finding
		if err := json.Unmarshal(line, &f); err != nil {
			return nil, fmt.Errorf("findings log line %d: %w", lineNo, err)
		}
		out = append(out, f)
	}
	return out, scanner.Err()
}

// ReadRun returns the Findings recorded for runID.
func (s *Store) ReadRun(runID string) ([]Finding, error) {
	all, err := s.ReadAll()
	if err != nil {
		return nil, err
	}
	var out []Finding
	for _, f := range all {
		if f.RunID == runID {
			out = append(out, f)
		}
	}
	return out, nil
}

package report

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// SpoolEntry is one finished resource narrative.
type SpoolEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Sequence   int64     `json:"sequence"`
	Index      int       `json:"index"`
	ResourceID string    `json:"resource_id"`
	Name       string    `json:"name"`
	Text       string    `json:"text"`
}

// Spool is an append-only json-lines file of narratives. Entries arrive in
// completion order; Entries sorts them back into resource order.
type Spool struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	writer   *bufio.Writer
	sequence int64
}

// OpenSpool creates the spool for a run in dir.
func OpenSpool(dir, runID string) (*Spool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create spool directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf(".carta-%s.spool", runID))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) // #nosec G304 -- path built from output dir
	if err != nil {
		return nil, fmt.Errorf("open spool: %w", err)
	}

	return &Spool{
		path:   path,
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

// Path returns the spool file path.
func (s *Spool) Path() string {
	return s.path
}

// Append records the narrative of the resource at index.
func (s *Spool) Append(index int, resourceID, name, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sequence++
	line, err := json.Marshal(SpoolEntry{
		Timestamp:  time.Now(),
		Sequence:   s.sequence,
		Index:      index,
		ResourceID: resourceID,
		Name:       name,
		Text:       text,
	})
	if err != nil {
		return fmt.Errorf("marshal spool entry: %w", err)
	}

	if _, err := s.writer.Write(line); err != nil {
		return fmt.Errorf("write spool entry: %w", err)
	}
	if err := s.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("flush spool: %w", err)
	}
	return s.file.Sync()
}

// Close flushes and closes the spool file.
func (s *Spool) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writer.Flush(); err != nil {
		return err
	}
	return s.file.Close()
}

// Remove closes and deletes the spool file.
func (s *Spool) Remove() error {
	if err := s.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove spool: %w", err)
	}
	return nil
}

// ReadSpool returns the entries of a spool file ordered by resource index.
func ReadSpool(path string) ([]SpoolEntry, error) {
	file, err := os.Open(path) // #nosec G304 -- spool path built by OpenSpool
	if err != nil {
		return nil, fmt.Errorf("open spool: %w", err)
	}
	defer func() { _ = file.Close() }()

	var entries []SpoolEntry
	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			var e SpoolEntry
			if uerr := json.Unmarshal(line, &e); uerr != nil {
				return nil, fmt.Errorf("unmarshal spool entry: %w", uerr)
			}
			entries = append(entries, e)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read spool: %w", err)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Index < entries[j].Index
	})
	return entries, nil
}

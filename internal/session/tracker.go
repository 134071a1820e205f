package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	stateFileName = "current_state.json"
	archivePrefix = "completed_state_"
	sessionIDTime = "20060102_150405"
	archiveIDTime = "20060102T150405"
	stateFileMode = 0o600
	stateDirMode  = 0o755
)

// ErrNotRunning is returned by operations that need a running session
var ErrNotRunning = errors.New("session is not running")

// Status is the lifecycle position of a tracker
type Status int

const (
	StatusNew Status = iota
	StatusRunning
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	default:
		return "new"
	}
}

// Tracker persists sweep progress so an interrupted run can resume.
// It assumes a single writer; callers hold a Lock on the directory.
type Tracker struct {
	dir    string
	state  *State
	status Status
	logger *zap.Logger
	now    func() time.Time
}

// NewTracker creates a tracker that keeps its files in dir
func NewTracker(dir string, logger *zap.Logger) (*Tracker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, stateDirMode); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &Tracker{
		dir:    dir,
		status: StatusNew,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Dir returns the session directory
func (t *Tracker) Dir() string {
	return t.dir
}

// Status returns the current lifecycle status
func (t *Tracker) Status() Status {
	return t.status
}

func (t *Tracker) statePath() string {
	return filepath.Join(t.dir, stateFileName)
}

// Start begins a fresh session and persists it immediately. Any live state
// file is replaced.
func (t *Tracker) Start(params Parameters) (string, error) {
	now := t.now().UTC()
	id := now.Format(sessionIDTime) + "_" + uuid.NewString()[:8]

	t.state = &State{
		SessionID:   id,
		StartedAt:   now,
		LastUpdated: now,
		Parameters:  params,
		Processed:   make(IDSet),
	}
	t.status = StatusRunning

	if err := t.Flush(); err != nil {
		t.state = nil
		t.status = StatusNew
		return "", err
	}

	t.logger.Info("Started new session", zap.String("session_id", id))
	return id, nil
}

// Load reads the live state file. A missing or unreadable file yields false.
func (t *Tracker) Load() bool {
	data, err := os.ReadFile(t.statePath())
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			t.logger.Warn("Failed to read session state", zap.Error(err))
		}
		return false
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		t.logger.Warn("Discarding corrupt session state",
			zap.String("path", t.statePath()),
			zap.Error(err))
		return false
	}
	if state.SessionID == "" {
		t.logger.Warn("Discarding session state without id", zap.String("path", t.statePath()))
		return false
	}
	if state.Processed == nil {
		state.Processed = make(IDSet)
	}

	t.state = &state
	t.status = StatusRunning

	t.logger.Info("Loaded existing session",
		zap.String("session_id", state.SessionID),
		zap.Int("processed", len(state.Processed)))
	return true
}

// CanResume reports whether a live state file exists
func (t *Tracker) CanResume() bool {
	_, err := os.Stat(t.statePath())
	return err == nil
}

// Discard removes the live state file without archiving it
func (t *Tracker) Discard() error {
	err := os.Remove(t.statePath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session state: %w", err)
	}
	t.state = nil
	t.status = StatusNew
	return nil
}

// SessionID returns the id of the running session, or "" when none is running
func (t *Tracker) SessionID() string {
	if t.state == nil {
		return ""
	}
	return t.state.SessionID
}

// Parameters returns the settings the running session was started with
func (t *Tracker) Parameters() Parameters {
	if t.state == nil {
		return Parameters{}
	}
	return t.state.Parameters
}

// MarkProcessed records that a message needs no further work. It is idempotent.
func (t *Tracker) MarkProcessed(id string) error {
	if t.status != StatusRunning {
		return ErrNotRunning
	}
	t.state.Processed[id] = struct{}{}
	return nil
}

// IsProcessed reports whether the message was marked processed
func (t *Tracker) IsProcessed(id string) bool {
	if t.state == nil {
		return false
	}
	_, ok := t.state.Processed[id]
	return ok
}

// UpdateProgress merges the non-nil counters into the state
func (t *Tracker) UpdateProgress(p Progress) error {
	if t.status != StatusRunning {
		return ErrNotRunning
	}
	setIfPresent(&t.state.TotalFound, p.TotalFound)
	setIfPresent(&t.state.Fetched, p.Fetched)
	setIfPresent(&t.state.Classified, p.Classified)
	setIfPresent(&t.state.Decided, p.Decided)
	return nil
}

// UpdateResults merges the non-nil decision counters into the state
func (t *Tracker) UpdateResults(r Results) error {
	if t.status != StatusRunning {
		return ErrNotRunning
	}
	setIfPresent(&t.state.Approved, r.Approved)
	setIfPresent(&t.state.Rejected, r.Rejected)
	setIfPresent(&t.state.Flagged, r.Flagged)
	return nil
}

func setIfPresent(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// Flush atomically replaces the live state file with the in-memory state
func (t *Tracker) Flush() error {
	if t.status != StatusRunning {
		return ErrNotRunning
	}
	t.state.LastUpdated = t.now().UTC()
	return writeJSONAtomic(t.statePath(), t.state)
}

// Complete archives the session, removes the live file and clears memory.
// It returns the archive path.
func (t *Tracker) Complete() (string, error) {
	if t.status != StatusRunning {
		return "", ErrNotRunning
	}

	now := t.now().UTC()
	final := t.state.clone()
	final.LastUpdated = now
	final.CompletedAt = &now

	name := fmt.Sprintf("%s%s_%s.json", archivePrefix, final.SessionID, now.Format(archiveIDTime))
	archive := filepath.Join(t.dir, name)
	if err := writeJSONAtomic(archive, final); err != nil {
		return "", err
	}
	if err := os.Remove(t.statePath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to remove live session state: %w", err)
	}

	t.logger.Info("Completed session",
		zap.String("session_id", final.SessionID),
		zap.String("archive", archive),
		zap.Int("processed", len(final.Processed)))

	t.state = nil
	t.status = StatusCompleted
	return archive, nil
}

// Summary returns a flat view of the running session
func (t *Tracker) Summary() Summary {
	if t.state == nil {
		return Summary{}
	}
	s := t.state
	return Summary{
		SessionID:   s.SessionID,
		StartedAt:   s.StartedAt,
		LastUpdated: s.LastUpdated,
		TotalFound:  s.TotalFound,
		Fetched:     s.Fetched,
		Classified:  s.Classified,
		Decided:     s.Decided,
		Processed:   len(s.Processed),
		Approved:    s.Approved,
		Rejected:    s.Rejected,
		Flagged:     s.Flagged,
	}
}

// writeJSONAtomic writes v to a temp file in the target directory, syncs it
// and renames it over path
func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write session state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync session state: %w", err)
	}
	if err := tmp.Chmod(stateFileMode); err != nil {
		cleanup()
		return fmt.Errorf("failed to set session state mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close session state: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace session state: %w", err)
	}
	return nil
}

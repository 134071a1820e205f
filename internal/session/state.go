package session

import (
	"encoding/json"
	"sort"
	"time"
)

// Parameters are the run settings recorded with a session
type Parameters struct {
	Query           string  `json:"query"`
	MaxMessages     int     `json:"max_messages"`
	Market          string  `json:"market"`
	Language        string  `json:"language"`
	Provider        string  `json:"provider"`
	DeleteThreshold float64 `json:"delete_threshold"`
	Delete          bool    `json:"delete"`
}

// State is the persisted progress of a sweep
type State struct {
	SessionID   string     `json:"session_id"`
	StartedAt   time.Time  `json:"started_at"`
	LastUpdated time.Time  `json:"last_updated"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Parameters  Parameters `json:"parameters"`

	TotalFound int `json:"total_found"`
	Fetched    int `json:"fetched"`
	Classified int `json:"classified"`
	Decided    int `json:"decided"`

	Processed IDSet `json:"processed_ids"`

	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Flagged  int `json:"flagged"`
}

func (s *State) clone() *State {
	c := *s
	c.Processed = make(IDSet, len(s.Processed))
	for id := range s.Processed {
		c.Processed[id] = struct{}{}
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// IDSet is a set of message ids, stored as a sorted JSON array
type IDSet map[string]struct{}

// Sorted returns the ids in lexical order
func (s IDSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s IDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *IDSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	set := make(IDSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	*s = set
	return nil
}

// Progress holds pipeline counters; nil fields are left unchanged
type Progress struct {
	TotalFound *int
	Fetched    *int
	Classified *int
	Decided    *int
}

// Results holds decision counters; nil fields are left unchanged
type Results struct {
	Approved *int
	Rejected *int
	Flagged  *int
}

// Int returns a pointer to n, for building Progress and Results
func Int(n int) *int {
	return &n
}

// Summary is a flat view of session progress for display
type Summary struct {
	SessionID   string    `json:"session_id"`
	StartedAt   time.Time `json:"started_at"`
	LastUpdated time.Time `json:"last_updated"`
	TotalFound  int       `json:"total_found"`
	Fetched     int       `json:"fetched"`
	Classified  int       `json:"classified"`
	Decided     int       `json:"decided"`
	Processed   int       `json:"processed"`
	Approved    int       `json:"approved"`
	Rejected    int       `json:"rejected"`
	Flagged     int       `json:"flagged"`
}

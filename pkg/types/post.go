package types

import (
	"sort"
	"time"
)

// PostRecord is one scraped forum post. It is produced upstream and never
// mutated by the engine.
type PostRecord struct {
	RowIndex    int
	Keyword     string
	Platform    string
	URL         string
	Title       string
	Body        string
	PublishedAt string
	Writer      string
}

// CandidateArticle is a search result considered as a possible source for a post.
// Body stays empty until the article has been fetched.
type CandidateArticle struct {
	Title string
	URL   string
	Body  string
}

// MatchResult is the engine output for one PostRecord.
type MatchResult struct {
	RowIndex     int     `json:"row_index"`
	OriginalLink string  `json:"original_link"`
	CopyRatio    float64 `json:"copy_ratio"`
}

// NoMatch returns the terminal "nothing found" result for a row.
func NoMatch(row int) MatchResult {
	return MatchResult{RowIndex: row}
}

// Matched reports whether a source article was linked.
func (r MatchResult) Matched() bool {
	return r.OriginalLink != "" && r.CopyRatio > 0
}

// PartitionState is the durable progress of one partition.
type PartitionState struct {
	RunID           string              `json:"run_id"`
	PartitionID     int                 `json:"partition_id"`
	TotalPartitions int                 `json:"total_partitions"`
	InputDigest     string              `json:"input_digest"`
	Results         map[int]MatchResult `json:"results"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// NewPartitionState returns an empty state for the given partition.
func NewPartitionState(runID string, id, total int) *PartitionState {
	return &PartitionState{
		RunID:           runID,
		PartitionID:     id,
		TotalPartitions: total,
		Results:         make(map[int]MatchResult),
	}
}

// Done reports whether the row already has a final result.
func (s *PartitionState) Done(row int) bool {
	_, ok := s.Results[row]
	return ok
}

// Record stores a final result for its row.
func (s *PartitionState) Record(res MatchResult) {
	if s.Results == nil {
		s.Results = make(map[int]MatchResult)
	}
	s.Results[res.RowIndex] = res
}

// ProcessedRows lists the rows that have a result, ascending.
func (s *PartitionState) ProcessedRows() []int {
	rows := make([]int, 0, len(s.Results))
	for row := range s.Results {
		rows = append(rows, row)
	}
	sort.Ints(rows)
	return rows
}

// Clone returns a deep copy safe to hand to a store while workers keep recording.
func (s *PartitionState) Clone() *PartitionState {
	out := *s
	out.Results = make(map[int]MatchResult, len(s.Results))
	for k, v := range s.Results {
		out.Results[k] = v
	}
	return &out
}

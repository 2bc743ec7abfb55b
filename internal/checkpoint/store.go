// Package checkpoint persists partition progress so an interrupted partition
// resumes where it stopped.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"newsmatch/pkg/types"
)

// Store saves and loads partition state. Keys are partition-exclusive, so
// concurrent partitions never write the same entry.
type Store interface {
	Load(ctx context.Context, runID string, partition, total int) (*types.PartitionState, bool, error)
	Save(ctx context.Context, state *types.PartitionState) error
	Close() error
}

// Key names the checkpoint entry of one partition.
func Key(prefix, runID string, partition, total int) string {
	name := fmt.Sprintf("partition-%04d-of-%04d.json", partition, total)
	return path.Join(strings.Trim(prefix, "/"), runID, name)
}

func encode(state *types.PartitionState) ([]byte, error) {
	snap := state.Clone()
	snap.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode checkpoint: %w", err)
	}
	return data, nil
}

func decode(data []byte, runID string, partition, total int) (*types.PartitionState, bool, error) {
	var state types.PartitionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, false, fmt.Errorf("decode checkpoint: %w", err)
	}
	if state.RunID != runID || state.PartitionID != partition || state.TotalPartitions != total {
		return nil, false, fmt.Errorf("checkpoint belongs to run %q partition %d/%d", state.RunID, state.PartitionID, state.TotalPartitions)
	}
	if state.Results == nil {
		state.Results = make(map[int]types.MatchResult)
	}
	return &state, true, nil
}

// Nop keeps nothing; every partition starts from scratch.
type Nop struct{}

func (Nop) Load(context.Context, string, int, int) (*types.PartitionState, bool, error) {
	return nil, false, nil
}

func (Nop) Save(context.Context, *types.PartitionState) error { return nil }

func (Nop) Close() error { return nil }

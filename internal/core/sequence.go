package core

import (
	"fmt"
)

// SequenceValidator enforces strictly increasing source sequences per
// basket. Gaps are tolerated (upstream producers are independent); stale
// sequences on events that are not known duplicates indicate out-of-order
// delivery and are rejected.
//
// Not thread-safe — only accessed from the single-threaded engine.
type SequenceValidator struct {
	lastSeen map[string]int64 // partition -> highest accepted sequence
}

func NewSequenceValidator() *SequenceValidator {
	return &SequenceValidator{
		lastSeen: make(map[string]int64),
	}
}

// Validate checks source sequence ordering for a partition.
func (sv *SequenceValidator) Validate(partition string, sourceSequence int64, isDuplicate bool) error {
	last, seen := sv.lastSeen[partition]

	if seen && sourceSequence <= last {
		if isDuplicate {
			// Already processed — expected
			return nil
		}
		return fmt.Errorf("out-of-order event: partition=%s, last=%d, got=%d",
			partition, last, sourceSequence)
	}

	sv.lastSeen[partition] = sourceSequence
	return nil
}

// LastSequence returns the highest accepted sequence for a partition.
func (sv *SequenceValidator) LastSequence(partition string) int64 {
	return sv.lastSeen[partition]
}

// Restore initializes a partition's watermark (used during recovery).
func (sv *SequenceValidator) Restore(partition string, seq int64) {
	sv.lastSeen[partition] = seq
}

// Watermarks returns all partition watermarks for snapshotting.
func (sv *SequenceValidator) Watermarks() map[string]int64 {
	out := make(map[string]int64, len(sv.lastSeen))
	for k, v := range sv.lastSeen {
		out[k] = v
	}
	return out
}

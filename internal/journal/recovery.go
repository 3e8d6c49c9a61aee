package journal

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// RecoveredState is what the Recovery Analyzer reconstructs from a prior,
// interrupted run's journal: the set of files the receiver had already
// confirmed deleted or sent before the crash. The journal's record format
// (spec.md §3) does not name a group, so recovery works at cycle
// granularity rather than resuming a specific group/file boundary — see the
// orchestrator's loadBaselineWithRecovery for how the result is applied.
type RecoveredState struct {
	Deleted map[string]struct{}
	Sent    map[string]struct{}
}

// Analyze replays the journal at path, if one exists, and returns the set
// of confirmed actions. If no journal exists, it returns an empty,
// non-nil RecoveredState and ok=false so callers can distinguish "nothing
// to recover" from "recovered an empty set".
func Analyze(path string) (state *RecoveredState, ok bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &RecoveredState{Deleted: map[string]struct{}{}, Sent: map[string]struct{}{}}, false, nil
		}

		return nil, false, fmt.Errorf("journal: opening %s for recovery: %w", path, err)
	}
	defer f.Close()

	state = &RecoveredState{Deleted: map[string]struct{}{}, Sent: map[string]struct{}{}}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, KindDeleted+" "):
			state.Deleted[strings.TrimPrefix(line, KindDeleted+" ")] = struct{}{}
		case strings.HasPrefix(line, KindSent+" "):
			state.Sent[strings.TrimPrefix(line, KindSent+" ")] = struct{}{}
		case line == KindBeginDeletions, line == KindBeginTSFiles:
			// Phase markers only; no per-record action needed during replay.
		default:
			// A truncated trailing line from a crash mid-write: per spec.md
			// §4.3 this is expected and must not invalidate prior records.
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, false, fmt.Errorf("journal: reading %s for recovery: %w", path, err)
	}

	return state, true, nil
}

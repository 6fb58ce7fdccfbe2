// Package scope computes the effective, enforceable set of chat IDs a
// caller may see, combining the process-wide master display filter with a
// viewer account's own allow-list.
package scope

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/tgarchive/viewer/internal/model"
	"github.com/tgarchive/viewer/internal/storage"
)

// SupergroupMagnitude mirrors the Telegram marked-ID convention used to
// probe a group's upgraded supergroup form.
const SupergroupMagnitude = model.SupergroupMagnitude

// Caller describes the identity resolving a scope: either the master
// operator, or a viewer with its own (possibly nil) allow-list.
type Caller struct {
	IsMaster       bool
	AllowedChatIDs *[]int64 // viewer's own allow-list; ignored when IsMaster
}

// Resolve computes the effective scope for caller given the process-level
// master display filter. A nil result means unrestricted; a non-nil
// (possibly empty) slice is the finite allow-set. Callers MUST NOT treat a
// nil result as the empty set.
func Resolve(caller Caller, masterFilter *[]int64) *[]int64 {
	if caller.IsMaster {
		return masterFilter
	}
	if caller.AllowedChatIDs == nil {
		return masterFilter
	}
	if masterFilter == nil {
		return caller.AllowedChatIDs
	}
	return intersect(*caller.AllowedChatIDs, *masterFilter)
}

func intersect(a, b []int64) *[]int64 {
	set := make(map[int64]struct{}, len(b))
	for _, id := range b {
		set[id] = struct{}{}
	}
	out := make([]int64, 0, len(a))
	for _, id := range a {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return &out
}

// Contains reports whether id is visible under scope (nil scope means
// unrestricted).
func Contains(s *[]int64, id int64) bool {
	if s == nil {
		return true
	}
	for _, v := range *s {
		if v == id {
			return true
		}
	}
	return false
}

// AutoCorrectMasterFilter implements the startup auto-correction rule: for
// every positive id in the configured master display filter absent from
// storage, probe the marked-supergroup form -(10^12 + id); if that form
// exists, substitute it and log a warning. Unknown ids are retained as-is,
// since they may appear in storage later (e.g. after the first sync run).
func AutoCorrectMasterFilter(ctx context.Context, store storage.Adapter, filter []int64) []int64 {
	corrected := make([]int64, len(filter))
	copy(corrected, filter)

	for i, id := range filter {
		if id <= 0 {
			continue
		}
		if chat, err := store.GetChat(ctx, id); err == nil && chat != nil {
			continue
		}

		marked := model.MarkedSupergroupID(id)
		if chat, err := store.GetChat(ctx, marked); err == nil && chat != nil {
			log.Warn().
				Int64("configured_id", id).
				Int64("resolved_id", marked).
				Msg("master display filter: substituting marked supergroup id")
			corrected[i] = marked
		}
	}
	return corrected
}

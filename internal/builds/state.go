// Package builds derives everything that can be computed from a build event
// alone: the normalized state, the branch class, dashboard and commit URLs,
// and the build duration. Nothing here performs I/O.
package builds

import (
	"slices"
	"strings"

	"buildnotify/internal/types"
)

// TypeRule maps a substring of the lower-cased event type to a state.
type TypeRule struct {
	Contains string
	State    types.BuildState
}

// WordRule maps membership of a lower-cased outcome/status value to a state.
type WordRule struct {
	Words []string
	State types.BuildState
}

// TypeRules are checked in order against the event type. Provider type strings
// are the most reliable signal when present.
var TypeRules = []TypeRule{
	{Contains: "succeeded", State: types.BuildSucceeded},
	{Contains: "failed", State: types.BuildFailed},
	{Contains: "canceled", State: types.BuildCanceled},
	{Contains: "cancelled", State: types.BuildCanceled},
}

// WordRules are checked in order (cancel, fail, success) against buildOutcome
// first and status second.
var WordRules = []WordRule{
	{Words: []string{"canceled", "cancelled", "canceled_build", "cancelled_build"}, State: types.BuildCanceled},
	{Words: []string{"failed", "failure", "error"}, State: types.BuildFailed},
	{Words: []string{"success", "succeeded", "ok"}, State: types.BuildSucceeded},
}

// Normalize maps a raw event onto one BuildState. It is total: a nil or empty
// event yields BuildUnknown.
func Normalize(ev *types.BuildEvent) types.BuildState {
	if ev == nil {
		return types.BuildUnknown
	}

	eventType := strings.ToLower(ev.Type)
	for _, rule := range TypeRules {
		if strings.Contains(eventType, rule.Contains) {
			return rule.State
		}
	}

	var outcome, status string
	if ev.Payload != nil {
		outcome = strings.ToLower(strings.TrimSpace(ev.Payload.Outcome()))
		status = strings.ToLower(strings.TrimSpace(ev.Payload.Status))
	}

	for _, rule := range WordRules {
		for _, value := range []string{outcome, status} {
			if value != "" && slices.Contains(rule.Words, value) {
				return rule.State
			}
		}
	}

	return types.BuildUnknown
}

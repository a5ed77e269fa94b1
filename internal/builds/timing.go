package builds

import (
	"fmt"
	"time"

	"buildnotify/internal/types"
)

// UnknownDuration is displayed when no sensible duration can be computed.
const UnknownDuration = "unknown"

// Duration computes stoppedAt - runningAt, falling back to stoppedAt -
// createdAt. The boolean is false when neither pair is available or the
// difference is negative.
func Duration(p *types.BuildPayload) (time.Duration, bool) {
	if p == nil {
		return 0, false
	}
	stopped, ok := types.ParseEventTime(p.StoppedAt)
	if !ok {
		return 0, false
	}

	start, ok := types.ParseEventTime(p.RunningAt)
	if !ok {
		start, ok = types.ParseEventTime(p.CreatedAt)
		if !ok {
			return 0, false
		}
	}

	d := stopped.Sub(start)
	if d < 0 {
		return 0, false
	}
	return d, true
}

// FormatDuration renders a duration as "45s", "3m 12s" or "1h 4m".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		return UnknownDuration
	}
	total := int64(d.Round(time.Second) / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

// DisplayDuration is Duration followed by FormatDuration, with UnknownDuration
// as the placeholder.
func DisplayDuration(p *types.BuildPayload) string {
	d, ok := Duration(p)
	if !ok {
		return UnknownDuration
	}
	return FormatDuration(d)
}

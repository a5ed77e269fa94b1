package types

import (
	"strings"
	"time"
)

// BuildState is the normalized outcome of a build lifecycle event.
type BuildState string

const (
	BuildSucceeded BuildState = "succeeded"
	BuildFailed    BuildState = "failed"
	BuildCanceled  BuildState = "canceled"
	BuildUnknown   BuildState = "unknown"
)

// BuildEvent is a single build lifecycle transition as delivered on the queue.
// Only Type, Payload and Metadata are structurally required; every other field
// may be absent and absence is never an error.
type BuildEvent struct {
	Type     string         `json:"type" validate:"required"`
	Source   EventSource    `json:"source"`
	Payload  *BuildPayload  `json:"payload" validate:"required"`
	Metadata *EventMetadata `json:"metadata" validate:"required"`
}

// EventSource identifies the thing that emitted the event.
type EventSource struct {
	Type       string `json:"type,omitempty"`
	WorkerName string `json:"workerName,omitempty"`
}

// BuildPayload carries the build-specific fields of an event.
type BuildPayload struct {
	BuildUUID            string           `json:"buildUuid,omitempty"`
	Status               string           `json:"status,omitempty"`
	BuildOutcome         *string          `json:"buildOutcome,omitempty"`
	CreatedAt            string           `json:"createdAt,omitempty"`
	RunningAt            string           `json:"runningAt,omitempty"`
	StoppedAt            string           `json:"stoppedAt,omitempty"`
	BuildTriggerMetadata *TriggerMetadata `json:"buildTriggerMetadata,omitempty"`
}

// TriggerMetadata describes what caused the build. Any field may be empty.
type TriggerMetadata struct {
	Branch              string `json:"branch,omitempty"`
	CommitHash          string `json:"commitHash,omitempty"`
	CommitMessage       string `json:"commitMessage,omitempty"`
	Author              string `json:"author,omitempty"`
	RepoName            string `json:"repoName,omitempty"`
	ProviderAccountName string `json:"providerAccountName,omitempty"`
	ProviderType        string `json:"providerType,omitempty"`
	BuildTriggerSource  string `json:"buildTriggerSource,omitempty"`
}

// EventMetadata is the envelope metadata attached by the event bus.
type EventMetadata struct {
	AccountID           string `json:"accountId,omitempty"`
	EventSubscriptionID string `json:"eventSubscriptionId,omitempty"`
	EventSchemaVersion  int    `json:"eventSchemaVersion,omitempty"`
	EventTimestamp      string `json:"eventTimestamp,omitempty"`
}

// Outcome returns the build outcome, or "" when the field was null or absent.
func (p *BuildPayload) Outcome() string {
	if p == nil || p.BuildOutcome == nil {
		return ""
	}
	return *p.BuildOutcome
}

// Trigger returns the trigger metadata, never nil.
func (e *BuildEvent) Trigger() TriggerMetadata {
	if e == nil || e.Payload == nil || e.Payload.BuildTriggerMetadata == nil {
		return TriggerMetadata{}
	}
	return *e.Payload.BuildTriggerMetadata
}

// AccountID returns the account identifier from the metadata envelope.
func (e *BuildEvent) AccountID() string {
	if e == nil || e.Metadata == nil {
		return ""
	}
	return strings.TrimSpace(e.Metadata.AccountID)
}

// BuildUUID returns the build identifier from the payload.
func (e *BuildEvent) BuildUUID() string {
	if e == nil || e.Payload == nil {
		return ""
	}
	return strings.TrimSpace(e.Payload.BuildUUID)
}

// ParseEventTime parses an ISO-8601 timestamp from an event payload.
// Returns false for empty or unparseable values.
func ParseEventTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// EnrichmentResult holds the out-of-band data fetched for one message.
// It is never persisted.
type EnrichmentResult struct {
	PreviewURL string
	LiveURL    string
	Logs       []string
}

// ErrorSummary is the extracted failure snippet and its optional remediation hint.
type ErrorSummary struct {
	Snippet string
	Hint    string
}

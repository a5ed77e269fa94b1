package webhook

import (
	"fmt"
	"strings"

	"buildnotify/internal/builds"
	"buildnotify/internal/logscan"
	"buildnotify/internal/types"
)

// MaxButtons is the sink's limit on buttons per actions block. Buttons are
// added in priority order and any beyond the limit are dropped.
const MaxButtons = 5

const (
	// maxCommitMessageRunes bounds the commit message shown in the context line.
	maxCommitMessageRunes = 80

	// maxSectionTextRunes is Slack's limit for a section text object.
	maxSectionTextRunes = 3000
)

// Block ids of the build notification layout.
const (
	BlockIDHeader  = "build_header"
	BlockIDFields  = "build_fields"
	BlockIDError   = "build_error"
	BlockIDHint    = "build_hint"
	BlockIDContext = "build_context"
	BlockIDActions = "build_actions"
)

// Button action ids.
const (
	ActionViewPreview = "view_preview"
	ActionViewWorker  = "view_worker"
	ActionViewLogs    = "view_logs"
	ActionViewCommit  = "view_commit"
	ActionViewBuild   = "view_build"
)

// StatePresentation is the header emoji and verb of one build state.
type StatePresentation struct {
	Emoji string
	Verb  string
}

// StatePresentations maps every BuildState to its header.
var StatePresentations = map[types.BuildState]StatePresentation{
	types.BuildSucceeded: {Emoji: ":white_check_mark:", Verb: "Build succeeded"},
	types.BuildFailed:    {Emoji: ":x:", Verb: "Build failed"},
	types.BuildCanceled:  {Emoji: ":no_entry_sign:", Verb: "Build canceled"},
	types.BuildUnknown:   {Emoji: ":grey_question:", Verb: "Build status unknown"},
}

// BuildFormatter renders a classified, enriched build event as a Slack Block
// Kit message. The layout is the same for every state; only the header, the
// error section and the buttons vary. Format is pure.
type BuildFormatter struct {
	Resolver builds.URLResolver
	Branches builds.BranchClassifier
}

// NewBuildFormatter creates a formatter.
func NewBuildFormatter(resolver builds.URLResolver, branches builds.BranchClassifier) *BuildFormatter {
	return &BuildFormatter{Resolver: resolver, Branches: branches}
}

// Format builds the notification document. errInfo is only read for failed
// builds; an empty snippet renders the "no logs" fallback.
func (f *BuildFormatter) Format(ev *types.BuildEvent, state types.BuildState, enrichment types.EnrichmentResult, errInfo types.ErrorSummary) SlackPayload {
	meta := ev.Trigger()
	worker := builds.WorkerName(ev)
	branch := strings.TrimSpace(meta.Branch)
	pres := presentationFor(state)

	dashboardURL := f.Resolver.DashboardURL(ev.AccountID(), worker, ev.BuildUUID())
	commitURL := f.Resolver.CommitURL(meta)

	title := fmt.Sprintf("%s %s: %s", pres.Emoji, pres.Verb, worker)
	text := title
	if branch != "" {
		text += " on " + branch
	}

	payload := SlackPayload{
		Text: text,
		Blocks: []SlackBlock{
			{
				Type:    BlockHeader,
				BlockID: BlockIDHeader,
				Text:    &SlackText{Type: TextPlain, Text: truncateRunes(title, 150), Emoji: true},
			},
			{
				Type:    BlockSection,
				BlockID: BlockIDFields,
				Fields:  buildFields(ev, branch, commitURL),
			},
		},
	}

	if state == types.BuildFailed {
		snippet := strings.TrimSpace(errInfo.Snippet)
		if snippet == "" {
			snippet = logscan.NoLogsMessage
		}
		payload.Blocks = append(payload.Blocks, SlackBlock{
			Type:    BlockSection,
			BlockID: BlockIDError,
			Text:    &SlackText{Type: TextMarkdown, Text: codeBlock(snippet, maxSectionTextRunes)},
		})
		if hint := strings.TrimSpace(errInfo.Hint); hint != "" {
			payload.Blocks = append(payload.Blocks, SlackBlock{
				Type:     BlockContext,
				BlockID:  BlockIDHint,
				Elements: []SlackElement{&SlackText{Type: TextMarkdown, Text: ":bulb: " + escapeMrkdwn(hint)}},
			})
		}
	}

	if elements := contextElements(ev, meta); len(elements) > 0 {
		payload.Blocks = append(payload.Blocks, SlackBlock{
			Type:     BlockContext,
			BlockID:  BlockIDContext,
			Elements: elements,
		})
	}

	production := f.Branches.IsProduction(branch)
	if buttons := buildButtons(state, production, enrichment, commitURL, dashboardURL); len(buttons) > 0 {
		payload.Blocks = append(payload.Blocks, SlackBlock{
			Type:     BlockActions,
			BlockID:  BlockIDActions,
			Elements: buttons,
		})
	}

	return payload
}

func presentationFor(state types.BuildState) StatePresentation {
	if p, ok := StatePresentations[state]; ok {
		return p
	}
	return StatePresentations[types.BuildUnknown]
}

// buildFields renders Branch, Commit, Author and Duration. Missing trigger
// values are omitted; Duration is always shown.
func buildFields(ev *types.BuildEvent, branch, commitURL string) []*SlackText {
	meta := ev.Trigger()
	var fields []*SlackText

	if branch != "" {
		fields = append(fields, field("Branch", "`"+escapeMrkdwn(branch)+"`"))
	}

	if hash := strings.TrimSpace(meta.CommitHash); hash != "" {
		short := escapeMrkdwn(shortID(hash, shortCommitLength))
		if commitURL != "" {
			fields = append(fields, field("Commit", fmt.Sprintf("<%s|%s>", commitURL, short)))
		} else {
			fields = append(fields, field("Commit", "`"+short+"`"))
		}
	}

	if author := authorLocalPart(meta.Author); author != "" {
		fields = append(fields, field("Author", escapeMrkdwn(author)))
	}

	var payload *types.BuildPayload
	if ev != nil {
		payload = ev.Payload
	}
	fields = append(fields, field("Duration", builds.DisplayDuration(payload)))

	return fields
}

func field(label, value string) *SlackText {
	return &SlackText{Type: TextMarkdown, Text: fmt.Sprintf("*%s*\n%s", label, value)}
}

// contextElements renders the commit message headline, trigger source and
// short build id.
func contextElements(ev *types.BuildEvent, meta types.TriggerMetadata) []SlackElement {
	var elements []SlackElement

	if msg := firstLine(meta.CommitMessage); msg != "" {
		elements = append(elements, &SlackText{
			Type: TextMarkdown,
			Text: escapeMrkdwn(truncateRunes(msg, maxCommitMessageRunes)),
		})
	}
	if src := strings.TrimSpace(meta.BuildTriggerSource); src != "" {
		elements = append(elements, &SlackText{Type: TextMarkdown, Text: "Trigger: " + escapeMrkdwn(src)})
	}
	if id := shortID(ev.BuildUUID(), shortBuildIDLength); id != "" {
		elements = append(elements, &SlackText{Type: TextMarkdown, Text: "Build `" + escapeMrkdwn(id) + "`"})
	}

	return elements
}

// buttonSet collects buttons in priority order up to MaxButtons.
type buttonSet struct {
	buttons []SlackElement
	urls    map[string]bool
}

func (s *buttonSet) add(label, url, style, actionID string) {
	if url == "" || len(s.buttons) >= MaxButtons {
		return
	}
	if s.urls == nil {
		s.urls = make(map[string]bool)
	}
	s.urls[url] = true
	s.buttons = append(s.buttons, &SlackButton{
		Type:     "button",
		Text:     &SlackText{Type: TextPlain, Text: label, Emoji: true},
		URL:      url,
		Style:    style,
		ActionID: actionID,
	})
}

func (s *buttonSet) has(url string) bool {
	return s.urls[url]
}

// buildButtons applies the button rules in priority order:
//  1. succeeded, non-production branch, preview URL: primary "View Preview"
//  2. succeeded, production branch, live URL: primary "View Worker"
//  3. failed: danger "View Full Logs" to the dashboard build page
//  4. commit URL: "View Commit"
//  5. dashboard URL not yet linked: "View Build"
func buildButtons(state types.BuildState, production bool, enrichment types.EnrichmentResult, commitURL, dashboardURL string) []SlackElement {
	var set buttonSet

	if state == types.BuildSucceeded {
		if !production {
			set.add("View Preview", enrichment.PreviewURL, ButtonPrimary, ActionViewPreview)
		} else {
			set.add("View Worker", enrichment.LiveURL, ButtonPrimary, ActionViewWorker)
		}
	}
	if state == types.BuildFailed {
		set.add("View Full Logs", dashboardURL, ButtonDanger, ActionViewLogs)
	}
	set.add("View Commit", commitURL, ButtonDefault, ActionViewCommit)
	if !set.has(dashboardURL) {
		set.add("View Build", dashboardURL, ButtonDefault, ActionViewBuild)
	}

	return set.buttons
}

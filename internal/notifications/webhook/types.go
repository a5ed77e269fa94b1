package webhook

// --- Slack Payload Types (Block Kit) ---

// Block types used by the build notification layout.
const (
	BlockHeader  = "header"
	BlockSection = "section"
	BlockContext = "context"
	BlockActions = "actions"
)

// Text object types.
const (
	TextPlain    = "plain_text"
	TextMarkdown = "mrkdwn"
)

// Button styles. The empty style renders as Slack's default button.
const (
	ButtonDefault = ""
	ButtonPrimary = "primary"
	ButtonDanger  = "danger"
)

// SlackPayload is the top-level structure for Slack Block Kit messages.
type SlackPayload struct {
	Text   string       `json:"text"`   // Fallback text for push notifications
	Blocks []SlackBlock `json:"blocks"` // Rich layout
}

// SlackBlock represents a single block in a Slack Block Kit message.
type SlackBlock struct {
	Type     string         `json:"type"`               // "section", "header", "context", "actions"
	BlockID  string         `json:"block_id,omitempty"` // Stable id for tests and interactivity
	Text     *SlackText     `json:"text,omitempty"`     // Primary text element
	Fields   []*SlackText   `json:"fields,omitempty"`   // Multi-column fields
	Elements []SlackElement `json:"elements,omitempty"` // Context texts or action buttons
}

// SlackElement is an element of a context or actions block: a *SlackText or
// a *SlackButton.
type SlackElement interface {
	slackElement()
}

// SlackText is a text composition object for Slack Block Kit.
type SlackText struct {
	Type  string `json:"type"`            // "plain_text", "mrkdwn"
	Text  string `json:"text"`            // Actual text content
	Emoji bool   `json:"emoji,omitempty"` // plain_text only: render :emoji: codes
}

func (*SlackText) slackElement() {}

// SlackButton is a link button inside an actions block.
type SlackButton struct {
	Type     string     `json:"type"` // always "button"
	Text     *SlackText `json:"text"`
	URL      string     `json:"url"`
	Style    string     `json:"style,omitempty"`
	ActionID string     `json:"action_id"`
}

func (*SlackButton) slackElement() {}

// Buttons returns the buttons of every actions block in order.
func (p SlackPayload) Buttons() []*SlackButton {
	var out []*SlackButton
	for _, b := range p.Blocks {
		if b.Type != BlockActions {
			continue
		}
		for _, el := range b.Elements {
			if btn, ok := el.(*SlackButton); ok {
				out = append(out, btn)
			}
		}
	}
	return out
}

// Block returns the first block with the given block id.
func (p SlackPayload) Block(id string) (SlackBlock, bool) {
	for _, b := range p.Blocks {
		if b.BlockID == id {
			return b, true
		}
	}
	return SlackBlock{}, false
}

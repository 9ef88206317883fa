package rule

import "encoding/json"

// Source tells which step of the evaluation produced a decision.
type Source string

const (
	SourceTrusted    Source = "trusted"
	SourceOverride   Source = "override"
	SourceUser       Source = "user"
	SourceDefault    Source = "default"
	SourceHeavy      Source = "bandwidth"
	SourceBackground Source = "background"
	SourceFallback   Source = "fallback"
	SourceBypass     Source = "bypass"
)

// Decision is the verdict for a flow. The zero value is not a valid decision,
// decisions are only produced by the Engine and by Bypass.
type Decision struct {
	action Action
	reason string
	source Source
}

func newDecision(action Action, source Source, reason string) Decision {
	return Decision{
		action: action,
		reason: reason,
		source: source,
	}
}

// Bypass is an allow decision taken without evaluation,
// e.g. when filtering is disabled or the flow cannot be parsed.
func Bypass(reason string) Decision {
	return newDecision(ActionAllow, SourceBypass, reason)
}

func (d Decision) Action() Action { return d.action }
func (d Decision) Reason() string { return d.reason }
func (d Decision) Source() Source { return d.source }

// ShouldRecord is set for every decision that is not a plain allow.
func (d Decision) ShouldRecord() bool {
	return d.action != ActionAllow
}

func (d Decision) IsZero() bool {
	return d.action == ""
}

func (d Decision) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Action       Action `json:"action"`
		Reason       string `json:"reason"`
		Source       Source `json:"source"`
		ShouldRecord bool   `json:"shouldRecord"`
	}{
		Action:       d.action,
		Reason:       d.reason,
		Source:       d.source,
		ShouldRecord: d.ShouldRecord(),
	})
}

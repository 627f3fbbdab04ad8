package notification

import (
	"fmt"
	"strings"

	"github.com/garyjia/proposal-approval/internal/domain/event"
)

// FormatMessage renders a human-readable notification for a workflow event
func FormatMessage(evt *event.Event) string {
	title := evt.GetPayloadString("title")
	step := evt.GetPayloadString("stepName")
	actor := evt.GetPayloadString("actor")

	var b strings.Builder
	switch evt.Type {
	case event.TypeProposalSubmitted:
		fmt.Fprintf(&b, "Proposal #%d %q submitted for review", evt.ProposalID, title)
		if applicant := evt.GetPayloadString("applicantName"); applicant != "" {
			fmt.Fprintf(&b, " by %s", applicant)
		}
		if step != "" {
			fmt.Fprintf(&b, ", first step %s", step)
		}
	case event.TypeStepApproved:
		fmt.Fprintf(&b, "Proposal #%d %q: step %s approved", evt.ProposalID, title, step)
		if actor != "" {
			fmt.Fprintf(&b, " by %s", actor)
		}
	case event.TypeProposalApproved:
		fmt.Fprintf(&b, "Proposal #%d %q approved", evt.ProposalID, title)
		if amount := evt.GetPayloadString("amount"); amount != "" {
			fmt.Fprintf(&b, " (amount %s)", amount)
		}
	case event.TypeProposalRejected:
		fmt.Fprintf(&b, "Proposal #%d %q rejected at step %s", evt.ProposalID, title, step)
		if actor != "" {
			fmt.Fprintf(&b, " by %s", actor)
		}
		if reason := evt.GetPayloadString("comments"); reason != "" {
			fmt.Fprintf(&b, ": %s", reason)
		}
	default:
		fmt.Fprintf(&b, "Proposal #%d: %s", evt.ProposalID, evt.Type)
	}
	return b.String()
}

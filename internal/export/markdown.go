package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/alienxp03/botdebate/internal/core"
)

// MarkdownExporter exports debates to Markdown format.
type MarkdownExporter struct{}

// Export writes the debate as Markdown.
func (e *MarkdownExporter) Export(debate *core.Debate, turns []*core.Turn, w io.Writer) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", debate.Topic)

	sb.WriteString("## Debate Information\n\n")
	fmt.Fprintf(&sb, "- **ID:** `%s`\n", debate.ID)
	fmt.Fprintf(&sb, "- **Status:** %s\n", debate.Status)
	fmt.Fprintf(&sb, "- **Coherence:** %.2f\n", debate.CoherenceScore)
	fmt.Fprintf(&sb, "- **Created:** %s\n", debate.CreatedAt.Format("January 2, 2006 at 3:04 PM"))
	if debate.CompletedAt != nil {
		fmt.Fprintf(&sb, "- **Completed:** %s\n", debate.CompletedAt.Format("January 2, 2006 at 3:04 PM"))
		fmt.Fprintf(&sb, "- **Duration:** %s\n", formatDuration(debate.CreatedAt, *debate.CompletedAt))
	}
	sb.WriteString("\n")

	stats := statsFor(turns)
	sb.WriteString("## Participants\n\n")
	for _, name := range []string{debate.BotA, debate.BotB} {
		s := stats[name]
		fmt.Fprintf(&sb, "- **%s:** %d turns", name, s.Turns)
		if s.Duplicates > 0 {
			fmt.Fprintf(&sb, " (%d repeated)", s.Duplicates)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	sb.WriteString("## Debate\n\n")
	if len(turns) == 0 {
		sb.WriteString("*No turns recorded.*\n\n")
	}
	for _, turn := range turns {
		fmt.Fprintf(&sb, "### Turn %d - %s\n\n", turn.Number, turn.Speaker)
		fmt.Fprintf(&sb, "*%s · relevance %.2f · coherence %.2f*", turn.CreatedAt.Format("3:04 PM"), turn.Relevance, turn.Coherence)
		if turn.Duplicate {
			sb.WriteString(" *· repeated*")
		}
		sb.WriteString("\n\n")
		sb.WriteString(turn.Content)
		sb.WriteString("\n\n---\n\n")
	}

	sb.WriteString("## Outcome\n\n")
	if debate.AgreementReached {
		sb.WriteString("**✅ Agreement Reached**\n\n")
	} else {
		fmt.Fprintf(&sb, "**%s**\n\n", outcome(debate))
	}

	sb.WriteString("---\n\n")
	sb.WriteString("*Exported from botdebate*\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return "md"
}

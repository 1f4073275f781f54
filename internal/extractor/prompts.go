package extractor

import (
	"fmt"
	"strings"

	"github.com/fachebot/talk-wrapped/internal/llm"
	"github.com/invopop/jsonschema"
)

const systemPrompt = `You read one slice of a team's chat history and pull out the material a year-in-review would be built from.

Return a single JSON object with these keys:
- topics: recurring subjects. Each has a short name, how many messages touched it (frequency), and up to two short sampleQuotes copied from the chat.
- achievements: things that shipped, launched, got fixed or celebrated. Each has who (an author from the chat, or "team"), what, and when (a date or rough period if the chat says so, otherwise "").
- sentiment: the dominant mood of this slice, exactly one of excited, stressed, celebratory, neutral, mixed.
- sentimentTrend: one short sentence on how the mood moved across the slice.
- quotes: up to five memorable lines. Each has text (verbatim), author, and context (one sentence on why it stands out).
- patterns: recurring habits of the group, e.g. "standups move to Slack on Fridays".

Rules:
- Only use what is in the messages. Do not invent names, numbers or events.
- Leave out email addresses, phone numbers, credentials and anything that looks private.
- Prefer fewer, sharper items over long lists.
- Output JSON only.`

// buildPrompt 单个分块的用户提示词
func buildPrompt(c Chunk, total int, subject, extra string, schema *jsonschema.Schema) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Channel: %s\n", subject)
	fmt.Fprintf(&sb, "Slice %d of %d, covering %s (%s to %s), %d messages.\n",
		c.Index+1, total, c.Period, c.Start.Format("2006-01-02"), c.End.Format("2006-01-02"), len(c.Messages))
	if extra = strings.TrimSpace(extra); extra != "" {
		sb.WriteString("Background: ")
		sb.WriteString(extra)
		sb.WriteByte('\n')
	}
	sb.WriteString("\nMessages:\n")
	sb.WriteString(c.Text)
	if hint := llm.SchemaHint(schema); hint != "" {
		sb.WriteString("\nJSON schema:\n")
		sb.WriteString(hint)
		sb.WriteByte('\n')
	}
	return sb.String()
}

package synthesizer

import (
	"fmt"
	"strings"

	"github.com/fachebot/talk-wrapped/internal/llm"
	"github.com/fachebot/talk-wrapped/internal/model"
	"github.com/fachebot/talk-wrapped/internal/stats"
	"github.com/invopop/jsonschema"
)

// 提示词中最多列出的贡献者
const promptContributorsLimit = 10

const systemPrompt = `You write the script for a "Wrapped" style year-in-review of a team chat channel.

You receive three things: what was talked about (already extracted from the chat), channel statistics, and the top contributors.
Turn them into one JSON object:
- yearStory: opening, arc, climax, closing. One or two sentences each, told in order through the year.
- topicHighlights: up to 5. topic, insight (a concrete observation, numbers welcome), bestQuote (copied from the material), period.
- bestQuotes: up to 4 quotes copied verbatim from the material, each with author, context and period.
- personalityTypes: a playful title for contributors from the list, with evidence taken from the material and a funFact.
- statsHighlights: up to 5 one-line highlights built from the statistics.
- roasts: up to 3 gentle teases about real habits, only when asked for.

Rules:
- Use only the material given. No invented people, events, numbers or quotes.
- Every personality type needs non-empty evidence and a username that appears in the contributor list.
- Warm and funny, never mean.
- Output JSON only.`

// buildPrompt 只使用聚合数据，长度与原始转录无关
func buildPrompt(in Input, schema *jsonschema.Schema) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Channel: %s\nYear: %d\n", in.SubjectName, in.Year)
	if c := strings.TrimSpace(in.Context); c != "" {
		fmt.Fprintf(&sb, "Background: %s\n", c)
	}

	sb.WriteString("\n## What people talked about\n")
	writeExtraction(&sb, in.Extraction)

	sb.WriteString("\n## Channel statistics\n")
	writeStatistics(&sb, in.Report)

	sb.WriteString("\n## Top contributors\n")
	writeContributors(&sb, in.Report.Contributors)

	sb.WriteString("\n## Constraints\n")
	fmt.Fprintf(&sb, "- personalityTypes: at most %d entries, usernames from the contributor list only.\n", in.TopContributors)
	if in.IncludeRoasts {
		sb.WriteString("- roasts: write 2 or 3.\n")
	} else {
		sb.WriteString("- roasts: must be an empty array.\n")
	}
	if hint := llm.SchemaHint(schema); hint != "" {
		sb.WriteString("\nJSON schema:\n")
		sb.WriteString(hint)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func writeExtraction(sb *strings.Builder, x *model.MergedExtraction) {
	if x == nil {
		sb.WriteString("(none)\n")
		return
	}
	if len(x.Topics) > 0 {
		sb.WriteString("Topics:\n")
		for _, t := range x.Topics {
			fmt.Fprintf(sb, "- %s (%d)", t.Name, t.Frequency)
			if len(t.SampleQuotes) > 0 {
				fmt.Fprintf(sb, ": %q", t.SampleQuotes[0])
			}
			sb.WriteByte('\n')
		}
	}
	if len(x.Achievements) > 0 {
		sb.WriteString("Achievements:\n")
		for _, a := range x.Achievements {
			fmt.Fprintf(sb, "- %s (%s, %s)\n", a.What, a.Who, a.When)
		}
	}
	if len(x.Timeline) > 0 {
		fmt.Fprintf(sb, "Mood: %s overall\n", x.OverallSentiment)
		for _, p := range x.Timeline {
			fmt.Fprintf(sb, "- %s: %s", p.Period, p.Sentiment)
			if p.Trend != "" {
				fmt.Fprintf(sb, ", %s", p.Trend)
			}
			sb.WriteByte('\n')
		}
	}
	if len(x.Quotes) > 0 {
		sb.WriteString("Quotes:\n")
		for _, q := range x.Quotes {
			fmt.Fprintf(sb, "- %q by %s (%s) %s\n", q.Text, q.Author, q.Period, q.Context)
		}
	}
	if len(x.Patterns) > 0 {
		sb.WriteString("Patterns:\n")
		for _, p := range x.Patterns {
			fmt.Fprintf(sb, "- %s\n", p)
		}
	}
}

func writeStatistics(sb *strings.Builder, r *stats.Report) {
	ch := r.Channel
	fmt.Fprintf(sb, "Total messages: %s\n", stats.FormatCount(ch.TotalMessages))
	fmt.Fprintf(sb, "Total words: %s\n", stats.FormatCount(ch.TotalWords))
	fmt.Fprintf(sb, "Contributors: %d\n", ch.TotalContributors)
	fmt.Fprintf(sb, "Active days: %d\n", ch.ActiveDays)
	fmt.Fprintf(sb, "Average message: %.1f words\n", ch.AverageMessageLength)
	if ch.HasData {
		fmt.Fprintf(sb, "Peak hour: %s\nPeak day: %s\n", stats.FormatHour(ch.PeakHour), ch.PeakDay)
		fmt.Fprintf(sb, "Busiest date: %s (%d messages)\n", ch.MostActiveDate, ch.MostActiveDateCount)
	}
	for i, n := range ch.QuarterlyCounts {
		fmt.Fprintf(sb, "Q%d: %s messages\n", i+1, stats.FormatCount(n))
	}
	for _, t := range r.Teams {
		fmt.Fprintf(sb, "Team %s: %d messages from %d people\n", t.Name, t.Messages, t.Members)
	}
	if len(r.TopWords) > 0 {
		words := make([]string, 0, len(r.TopWords))
		for _, w := range r.TopWords {
			words = append(words, fmt.Sprintf("%s (%d)", w.Term, w.Count))
		}
		fmt.Fprintf(sb, "Top words: %s\n", strings.Join(words, ", "))
	}
}

func writeContributors(sb *strings.Builder, contributors []model.ContributorRecord) {
	for i, c := range contributors {
		if i >= promptContributorsLimit {
			break
		}
		fmt.Fprintf(sb, "#%d %s (username %s): %d messages, %.1f%%", i+1, c.DisplayName, c.Identity, c.MessageCount, c.ContributionPercent)
		if c.Team != "" {
			fmt.Fprintf(sb, ", team %s", c.Team)
		}
		if len(c.FavoriteWords) > 0 {
			fmt.Fprintf(sb, ", favorite words: %s", strings.Join(c.FavoriteWords, ", "))
		}
		sb.WriteByte('\n')
	}
}

package stats

import (
	"fmt"
	"strings"

	"github.com/fachebot/talk-wrapped/internal/model"
)

const maxFunFacts = 5

// FormatHour 将 0-23 转为 "h:00 AM/PM"
func FormatHour(hour int) string {
	period := "AM"
	if hour >= 12 {
		period = "PM"
	}
	display := hour % 12
	if display == 0 {
		display = 12
	}
	return fmt.Sprintf("%d:00 %s", display, period)
}

// FunFacts 根据统计生成趣味数据，最多 5 条
func FunFacts(r *Report) []model.FunFact {
	facts := make([]model.FunFact, 0, maxFunFacts)
	ch := r.Channel
	if !ch.HasData {
		return facts
	}

	facts = append(facts, model.FunFact{
		Label:  "Peak Hour",
		Value:  FormatHour(ch.PeakHour),
		Detail: fmt.Sprintf("%ss are the busiest day", ch.PeakDay),
	})

	facts = append(facts, model.FunFact{
		Label:  "Avg Message",
		Value:  fmt.Sprintf("%.1f words", ch.AverageMessageLength),
		Detail: fmt.Sprintf("Across %s messages", FormatCount(ch.TotalMessages)),
	})

	if len(r.TopWords) > 0 {
		n := min(3, len(r.TopWords))
		words := make([]string, n)
		for i := 0; i < n; i++ {
			words[i] = r.TopWords[i].Term
		}
		facts = append(facts, model.FunFact{
			Label:  "Favorite Words",
			Value:  strings.Join(words, ", "),
			Detail: fmt.Sprintf("%q used %s times", r.TopWords[0].Term, FormatCount(r.TopWords[0].Count)),
		})
	}

	if len(r.TopEmoji) > 0 {
		n := min(3, len(r.TopEmoji))
		var sb strings.Builder
		for i := 0; i < n; i++ {
			sb.WriteString(r.TopEmoji[i].Term)
		}
		facts = append(facts, model.FunFact{
			Label:  "Top Emoji",
			Value:  sb.String(),
			Detail: fmt.Sprintf("%s used %d times", r.TopEmoji[0].Term, r.TopEmoji[0].Count),
		})
	}

	if ch.MostActiveDate != "" {
		facts = append(facts, model.FunFact{
			Label:  "Busiest Day",
			Value:  ch.MostActiveDate,
			Detail: fmt.Sprintf("%d messages in a single day", ch.MostActiveDateCount),
		})
	}

	if len(facts) > maxFunFacts {
		facts = facts[:maxFunFacts]
	}
	return facts
}

// FormatCount 千分位格式化
func FormatCount(n int) string {
	s := fmt.Sprintf("%d", n)
	if n < 0 {
		return "-" + FormatCount(-n)
	}
	if len(s) <= 3 {
		return s
	}
	var sb strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		sb.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(s[i : i+3])
	}
	return sb.String()
}

package synthesizer

import (
	"fmt"

	"github.com/fachebot/talk-wrapped/internal/model"
	"github.com/fachebot/talk-wrapped/internal/stats"
)

var fallbackTitles = []string{"The Champion", "The Contributor", "The Voice", "The Collaborator", "The Team Player"}

// Fallback 只根据统计数据生成的模板洞察，结构与模型输出一致，相同输入结果相同
func Fallback(in Input) *model.SynthesizedInsights {
	out := &model.SynthesizedInsights{
		TopicHighlights:  make([]model.TopicHighlight, 0),
		BestQuotes:       make([]model.Quote, 0),
		PersonalityTypes: make([]model.PersonalityType, 0),
		StatsHighlights:  make([]string, 0),
		Roasts:           make([]string, 0),
	}
	if in.Report == nil || !in.Report.Channel.HasData {
		return out
	}

	ch := in.Report.Channel
	out.YearStory = &model.YearStory{
		Opening: fmt.Sprintf("#%s kicked off %d ready to talk.", in.SubjectName, in.Year),
		Arc: fmt.Sprintf("Over the year %d people shared %s messages.",
			ch.TotalContributors, stats.FormatCount(ch.TotalMessages)),
		Climax: fmt.Sprintf("Things peaked on %ss around %s.", ch.PeakDay, stats.FormatHour(ch.PeakHour)),
		Closing: fmt.Sprintf("Together the channel wrote %s words across %d active days.",
			stats.FormatCount(ch.TotalWords), ch.ActiveDays),
	}

	limit := min(max(in.TopContributors, 1), len(fallbackTitles))
	for i, c := range in.Report.Contributors {
		if i >= limit {
			break
		}
		out.PersonalityTypes = append(out.PersonalityTypes, model.PersonalityType{
			Username:        c.Identity,
			DisplayName:     c.DisplayName,
			PersonalityType: fallbackTitles[i],
			Evidence:        fmt.Sprintf("Sent %s messages", stats.FormatCount(c.MessageCount)),
			FunFact:         fmt.Sprintf("Wrote %.1f%% of all messages!", c.ContributionPercent),
		})
	}

	out.StatsHighlights = append(out.StatsHighlights,
		fmt.Sprintf("%s messages exchanged", stats.FormatCount(ch.TotalMessages)),
		fmt.Sprintf("%s words written", stats.FormatCount(ch.TotalWords)),
		fmt.Sprintf("%d contributors took part", ch.TotalContributors),
	)
	if ch.MostActiveDate != "" {
		out.StatsHighlights = append(out.StatsHighlights,
			fmt.Sprintf("Busiest day: %s with %d messages", ch.MostActiveDate, ch.MostActiveDateCount))
	}
	return out
}

package synthesizer

import (
	"fmt"
	"strings"

	"github.com/fachebot/talk-wrapped/internal/llm"
	"github.com/fachebot/talk-wrapped/internal/model"
)

const (
	MaxTopicHighlights = 5
	MaxBestQuotes      = 4
	MaxStatsHighlights = 5
	MaxRoasts          = 3
)

// Validate 结构校验，任一问题都会使整个结果无效
// 通过校验时 personalityTypes 的 username 会规整为贡献者的原始标识
func Validate(out *model.SynthesizedInsights, in Input) error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if s := out.YearStory; s != nil {
		if blank(s.Opening) || blank(s.Arc) || blank(s.Climax) || blank(s.Closing) {
			addf("yearStory needs non-empty opening, arc, climax and closing")
		}
	}

	if n := len(out.TopicHighlights); n > MaxTopicHighlights {
		addf("topicHighlights has %d items, at most %d allowed", n, MaxTopicHighlights)
	}
	for i, t := range out.TopicHighlights {
		if blank(t.Topic) || blank(t.Insight) {
			addf("topicHighlights[%d] needs topic and insight", i)
		}
	}

	if n := len(out.BestQuotes); n > MaxBestQuotes {
		addf("bestQuotes has %d items, at most %d allowed", n, MaxBestQuotes)
	}
	for i, q := range out.BestQuotes {
		if blank(q.Text) || blank(q.Author) {
			addf("bestQuotes[%d] needs text and author", i)
		}
	}

	if n := len(out.StatsHighlights); n > MaxStatsHighlights {
		addf("statsHighlights has %d items, at most %d allowed", n, MaxStatsHighlights)
	}

	switch n := len(out.Roasts); {
	case !in.IncludeRoasts && n > 0:
		addf("roasts must be empty")
	case n > MaxRoasts:
		addf("roasts has %d items, at most %d allowed", n, MaxRoasts)
	}

	limit := in.TopContributors
	if limit <= 0 {
		limit = 5
	}
	if n := len(out.PersonalityTypes); n > limit {
		addf("personalityTypes has %d items, at most %d allowed", n, limit)
	}
	identities := make(map[string]string)
	if in.Report != nil {
		for _, c := range in.Report.Contributors {
			identities[strings.ToLower(c.Identity)] = c.Identity
		}
	}
	seen := make(map[string]bool)
	for i := range out.PersonalityTypes {
		p := &out.PersonalityTypes[i]
		identity, ok := identities[strings.ToLower(strings.TrimSpace(p.Username))]
		switch {
		case !ok:
			addf("personalityTypes[%d].username %q is not a contributor", i, p.Username)
		case seen[identity]:
			addf("personalityTypes[%d].username %q is repeated", i, p.Username)
		default:
			seen[identity] = true
			p.Username = identity
		}
		if blank(p.PersonalityType) {
			addf("personalityTypes[%d].personalityType is empty", i)
		}
		if blank(p.Evidence) {
			addf("personalityTypes[%d].evidence is empty", i)
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return &llm.SchemaError{Reason: strings.Join(problems, "; ")}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

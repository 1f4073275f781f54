package model

type YearStory struct {
	Opening string `json:"opening"`
	Arc     string `json:"arc"`
	Climax  string `json:"climax"`
	Closing string `json:"closing"`
}

type TopicHighlight struct {
	Topic     string `json:"topic"`
	Insight   string `json:"insight"`
	BestQuote string `json:"bestQuote"`
	Period    string `json:"period"`
}

type PersonalityType struct {
	Username        string `json:"username"`
	DisplayName     string `json:"displayName,omitempty"`
	PersonalityType string `json:"personalityType"`
	Evidence        string `json:"evidence"`
	FunFact         string `json:"funFact"`
}

// SynthesizedInsights 综合阶段输出，校验通过后才会被采用
type SynthesizedInsights struct {
	YearStory        *YearStory        `json:"yearStory"`
	TopicHighlights  []TopicHighlight  `json:"topicHighlights" jsonschema:"maxItems=5"`
	BestQuotes       []Quote           `json:"bestQuotes" jsonschema:"maxItems=4"`
	PersonalityTypes []PersonalityType `json:"personalityTypes"`
	StatsHighlights  []string          `json:"statsHighlights" jsonschema:"maxItems=5"`
	Roasts           []string          `json:"roasts" jsonschema:"maxItems=3"`
}

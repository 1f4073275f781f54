package stats

import (
	"regexp"
	"strings"
)

var (
	urlPattern     = regexp.MustCompile(`<?https?://[^\s>]+>?`)
	mentionPattern = regexp.MustCompile(`<@[A-Za-z0-9._-]+>|(?:^|\s)@[A-Za-z0-9][A-Za-z0-9._-]*`)
	wordPattern    = regexp.MustCompile(`\b[a-zA-Z]{3,}\b`)
)

// stopWords 常见英文停用词，只读
var stopWords = func() map[string]struct{} {
	words := []string{
		// 冠词、连词、介词
		"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for",
		"of", "with", "by", "from", "as", "into", "through", "during", "before",
		"after", "above", "below", "up", "down", "out", "off", "over", "under",
		// be/have/do 与情态动词
		"is", "was", "are", "were", "been", "be", "have", "has", "had",
		"do", "does", "did", "will", "would", "could", "should", "may", "might",
		"must", "shall", "can", "need", "dare", "ought", "used",
		// 代词
		"it", "its", "this", "that", "these", "those", "i", "you", "he",
		"she", "we", "they", "me", "him", "her", "us", "them", "my", "your",
		"his", "our", "their", "mine", "yours", "hers", "ours", "theirs",
		// 疑问词与限定词
		"what", "which", "who", "whom", "when", "where", "why", "how", "all",
		"each", "every", "both", "few", "more", "most", "other", "some", "such",
		// 副词等
		"no", "nor", "not", "only", "own", "same", "so", "than", "too", "very",
		"just", "also", "now", "here", "there", "then", "if", "because", "about",
		"again", "further", "once",
		// 口语
		"yeah", "yes", "ok", "okay", "hi", "hey", "hello", "thanks",
		"thank", "please", "sorry", "got", "get", "going", "go", "know",
		"like", "think", "see", "look", "make", "want", "give", "take",
		"don", "didn", "doesn", "isn", "wasn", "aren", "won", "can't", "let",
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}()

// IsStopWord 是否为停用词（输入需为小写）
func IsStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}

// StripNoise 去除链接与 @提及
func StripNoise(text string) string {
	text = urlPattern.ReplaceAllString(text, " ")
	return mentionPattern.ReplaceAllString(text, " ")
}

// CountWords 去除链接与提及后按空白切分的词数
func CountWords(text string) int {
	return len(strings.Fields(StripNoise(text)))
}

// contentWords 至少 3 个字母且不是停用词的小写词
func contentWords(text string) []string {
	tokens := wordPattern.FindAllString(strings.ToLower(StripNoise(text)), -1)
	words := tokens[:0]
	for _, t := range tokens {
		if !IsStopWord(t) {
			words = append(words, t)
		}
	}
	return words
}

// isEmoji 常见表情符号区段
func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1F5FF, // 符号与象形文字
		r >= 0x1F600 && r <= 0x1F64F, // 表情
		r >= 0x1F680 && r <= 0x1F6FF, // 交通与地图
		r >= 0x1F900 && r <= 0x1FAFF, // 补充符号
		r >= 0x1F1E6 && r <= 0x1F1FF, // 区域指示符
		r >= 0x2600 && r <= 0x27BF:   // 杂项符号与装饰符号
		return true
	}
	return false
}

func emojis(text string) []string {
	var out []string
	for _, r := range text {
		if isEmoji(r) {
			out = append(out, string(r))
		}
	}
	return out
}

package parser

import (
	"regexp"
	"strings"
	"time"
)

// Format 支持的行格式，按匹配优先级排列
type Format int

const (
	FormatISO       Format = iota // 2025-03-15T14:23:00Z alice: text
	FormatUS                      // [3/15/2025 2:23 PM] alice: text
	FormatSimple                  // alice [14:23]: text
	FormatTimeFirst               // 14:23 alice: text
	FormatDateSpace               // 2025-03-15 14:23 alice: text
)

func (f Format) String() string {
	switch f {
	case FormatISO:
		return "iso"
	case FormatUS:
		return "us"
	case FormatSimple:
		return "simple"
	case FormatTimeFirst:
		return "time_first"
	case FormatDateSpace:
		return "date_space"
	default:
		return "unknown"
	}
}

// HasYear 该格式是否自带年份
func (f Format) HasYear() bool {
	return f != FormatSimple && f != FormatTimeFirst
}

type linePattern struct {
	format Format
	re     *regexp.Regexp
	// 各捕获组下标
	stamp, author, text int
}

var patterns = []linePattern{
	{
		format: FormatISO,
		re:     regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}(?::\d{2})?(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?)\s+(\S+):\s*(.+)$`),
		stamp:  1, author: 2, text: 3,
	},
	{
		format: FormatUS,
		re:     regexp.MustCompile(`(?i)^\[(\d{1,2}/\d{1,2}/\d{4}\s+\d{1,2}:\d{2}(?::\d{2})?\s*[AP]M)\]\s+(\S+):\s*(.+)$`),
		stamp:  1, author: 2, text: 3,
	},
	{
		format: FormatSimple,
		re:     regexp.MustCompile(`^(\S+)\s+\[(\d{2}:\d{2}(?::\d{2})?)\]:\s*(.+)$`),
		stamp:  2, author: 1, text: 3,
	},
	{
		format: FormatTimeFirst,
		re:     regexp.MustCompile(`^(\d{2}:\d{2}(?::\d{2})?)\s+(\S+):\s*(.+)$`),
		stamp:  1, author: 2, text: 3,
	},
	{
		format: FormatDateSpace,
		re:     regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}(?::\d{2})?)\s+(\S+):\s*(.+)$`),
		stamp:  1, author: 2, text: 3,
	},
}

// noticeBody 消息正文以这些通知开头时视为系统消息
var noticeBody = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(?:has\s+)?(?:joined|left)\s+the\s+channel\s*\.?$`),
	regexp.MustCompile(`(?i)^has\s+(?:joined|left)(?:\s+#\S+)?\s*\.?$`),
	regexp.MustCompile(`(?i)^this\s+channel\s+was\s+created\b`),
	regexp.MustCompile(`(?i)^channel\s+(?:created|archived)\b`),
	regexp.MustCompile(`(?i)^set\s+the\s+channel\s+(?:topic|purpose|description)\b`),
	regexp.MustCompile(`(?i)^(?:renamed|archived)\s+the\s+channel\b`),
}

// noticeLine 不符合任何消息格式的整行通知，行首最多允许三个名字片段
var noticeLine = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(?:[^\s:]+\s+){0,3}(?:has\s+)?(?:joined|left)\s+the\s+channel\s*\.?$`),
	regexp.MustCompile(`(?i)^(?:[^\s:]+\s+){1,3}has\s+(?:joined|left)(?:\s+#\S+)?\s*\.?$`),
	regexp.MustCompile(`(?i)^this\s+channel\s+was\s+created\b`),
	regexp.MustCompile(`(?i)^channel\s+(?:created|archived)\b`),
	regexp.MustCompile(`(?i)^(?:[^\s:]+\s+){1,3}set\s+the\s+channel\s+(?:topic|purpose|description)\b`),
	regexp.MustCompile(`(?i)^(?:[^\s:]+\s+){1,3}(?:renamed|archived)\s+the\s+channel\b`),
}

// isSystemLine 在格式匹配之前判断系统通知：
// 符合消息格式的行只看正文开头，其余行按整行通知匹配
func isSystemLine(line string) bool {
	for _, pattern := range patterns {
		if groups := pattern.re.FindStringSubmatch(line); groups != nil {
			return matchAny(noticeBody, strings.TrimSpace(groups[pattern.text]))
		}
	}
	return matchAny(noticeLine, line)
}

func matchAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

var (
	isoZonedLayouts = []string{
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02T15:04Z07:00",
		"2006-01-02T15:04:05Z0700",
		"2006-01-02T15:04Z0700",
	}
	isoNaiveLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
	}
	usLayouts = []string{
		"1/2/2006 3:04:05 PM",
		"1/2/2006 3:04 PM",
	}
	dateSpaceLayouts = []string{
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
	}
	timeOnlyLayouts = []string{
		"15:04:05",
		"15:04",
	}
)

var (
	spaceRun = regexp.MustCompile(`\s+`)
	meridiem = regexp.MustCompile(`(?i)\s*([AP]M)$`)
)

func parseWithLayouts(layouts []string, value string, loc *time.Location) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseStamp 解析时间戳；无年份格式使用 defaultYear 的 1 月 1 日
func parseStamp(format Format, stamp string, defaultYear int, loc *time.Location) (time.Time, bool) {
	switch format {
	case FormatISO:
		if strings.HasSuffix(stamp, "Z") || hasOffset(stamp) {
			return parseWithLayouts(isoZonedLayouts, stamp, loc)
		}
		return parseWithLayouts(isoNaiveLayouts, stamp, loc)
	case FormatUS:
		normalized := spaceRun.ReplaceAllString(strings.TrimSpace(stamp), " ")
		normalized = meridiem.ReplaceAllStringFunc(normalized, func(s string) string {
			return " " + strings.ToUpper(strings.TrimSpace(s))
		})
		return parseWithLayouts(usLayouts, normalized, loc)
	case FormatDateSpace:
		normalized := spaceRun.ReplaceAllString(stamp, " ")
		return parseWithLayouts(dateSpaceLayouts, normalized, loc)
	case FormatSimple, FormatTimeFirst:
		clock, ok := parseWithLayouts(timeOnlyLayouts, stamp, time.UTC)
		if !ok {
			return time.Time{}, false
		}
		return time.Date(defaultYear, time.January, 1, clock.Hour(), clock.Minute(), clock.Second(), 0, loc), true
	}
	return time.Time{}, false
}

// hasOffset 判断 ISO 时间戳末尾是否带 ±hh:mm 或 ±hhmm
func hasOffset(stamp string) bool {
	idx := strings.LastIndexAny(stamp, "+-")
	return idx > len("2006-01-02")
}

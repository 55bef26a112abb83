package moderation

import "time"

// Category orders violation types by severity, most severe last. When several
// rule sets match the same message, the highest category wins.
type Category int

const (
	CategoryClean Category = iota
	CategorySpam
	CategoryCompetitor
	CategoryVulgar
	CategoryScreenshotThreat
)

func (c Category) String() string {
	switch c {
	case CategorySpam:
		return "SPAM"
	case CategoryCompetitor:
		return "COMPETITOR"
	case CategoryVulgar:
		return "VULGAR"
	case CategoryScreenshotThreat:
		return "SCREENSHOT_THREAT"
	default:
		return "CLEAN"
	}
}

// Verdict is the classifier's output for a single message. Confidence is only
// set for image-derived verdicts; text rule matches are binary.
type Verdict struct {
	Category    Category
	MatchedRule string
	Confidence  float64
}

// Message is the classifier's and deleter's view of a channel message,
// decoupled from the transport's update types.
type Message struct {
	ID            int
	ChatID        int64
	AuthorID      int64
	SentAt        time.Time
	Text          string
	ImageRef      string
	AdminAuthored bool
}

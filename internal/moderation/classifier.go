package moderation

import (
	"context"
	"regexp"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"github.com/Shivam4552/Telegram-bot-ocean/internal/adapters/vision"
	"github.com/Shivam4552/Telegram-bot-ocean/internal/config"
	"github.com/Shivam4552/Telegram-bot-ocean/internal/observability"
)

// Trust tiers. Users at or above the trusted tier only get the commercial
// check, the good tier gets educational leniency, everyone else gets the full
// strict evaluation.
const (
	trustTierTrusted = 80
	trustTierGood    = 60
)

var urlPattern = regexp.MustCompile(`(?i)(?:https?://|www\.)\S+`)

// Classifier evaluates messages against the loaded rule sets and an optional
// image analyzer. Rule snapshots swap atomically, so a reload never blocks
// in-flight classification.
type Classifier struct {
	rules               atomic.Pointer[config.Rules]
	analyzer            vision.Analyzer
	confidenceThreshold float64
	onDegraded          func(error)
	logger              *log.Entry
}

// NewClassifier builds a classifier. analyzer may be nil, in which case the
// image signal is disabled. onDegraded is invoked (if non-nil) whenever the
// analyzer fails and the image signal is skipped.
func NewClassifier(rules *config.Rules, analyzer vision.Analyzer, confidenceThreshold float64, onDegraded func(error)) *Classifier {
	c := &Classifier{
		analyzer:            analyzer,
		confidenceThreshold: confidenceThreshold,
		onDegraded:          onDegraded,
		logger:              log.WithField("context", "classifier"),
	}
	c.rules.Store(rules)
	return c
}

// ReloadRules swaps in a fresh rule snapshot.
func (c *Classifier) ReloadRules(rules *config.Rules) {
	c.rules.Store(rules)
}

// Classify returns the verdict for msg given the sender's current record.
// Whitelisted senders and admin-authored messages are always clean. Text rules
// run before the image signal; a text match short-circuits the analyzer call.
func (c *Classifier) Classify(ctx context.Context, msg Message, sender Record) Verdict {
	if sender.Whitelisted || msg.AdminAuthored {
		return Verdict{Category: CategoryClean}
	}

	rules := c.rules.Load()
	verdict := c.classifyText(rules, msg.Text, sender.TrustScore)
	if verdict.Category == CategoryClean && msg.ImageRef != "" {
		verdict = c.classifyImage(ctx, msg.ImageRef)
	}
	observability.RecordVerdict(verdict.Category.String())
	return verdict
}

func (c *Classifier) classifyText(rules *config.Rules, text string, trustScore int) Verdict {
	if text == "" {
		return Verdict{Category: CategoryClean}
	}
	normalized := strings.ToLower(text)
	collapsed := collapseSeparators(normalized)

	switch {
	case trustScore >= trustTierTrusted:
		// Trusted users only trip on outright commercial solicitation.
		if rule, ok := matchAny(rules.CommercialPatterns, normalized, collapsed); ok {
			return Verdict{Category: CategorySpam, MatchedRule: rule}
		}
		return Verdict{Category: CategoryClean}
	case trustScore >= trustTierGood:
		if hasEducationalContext(rules, normalized) {
			if rule, ok := matchAny(rules.CommercialPatterns, normalized, collapsed); ok {
				return Verdict{Category: CategorySpam, MatchedRule: rule}
			}
			return Verdict{Category: CategoryClean}
		}
		return c.matchOrdered(rules, normalized, collapsed, false)
	default:
		return c.matchOrdered(rules, normalized, collapsed, true)
	}
}

// matchOrdered evaluates rule sets in severity order; the first match wins.
// Strict mode additionally treats commercial and promotional content as spam.
func (c *Classifier) matchOrdered(rules *config.Rules, normalized, collapsed string, strict bool) Verdict {
	if rule, ok := matchAny(rules.ScreenshotThreats, normalized, collapsed); ok {
		return Verdict{Category: CategoryScreenshotThreat, MatchedRule: rule}
	}
	if rule, ok := matchAny(rules.VulgarWords, normalized, collapsed); ok {
		return Verdict{Category: CategoryVulgar, MatchedRule: rule}
	}
	if rule, ok := matchAny(rules.CompetitorKeywords, normalized, collapsed); ok {
		return Verdict{Category: CategoryCompetitor, MatchedRule: rule}
	}
	if rule, ok := c.matchSpam(rules, normalized, collapsed); ok {
		return Verdict{Category: CategorySpam, MatchedRule: rule}
	}
	if strict {
		if rule, ok := matchAny(rules.CommercialPatterns, normalized, collapsed); ok {
			return Verdict{Category: CategorySpam, MatchedRule: rule}
		}
		if rule, ok := matchAny(rules.PromotionalPatterns, normalized, collapsed); ok {
			return Verdict{Category: CategorySpam, MatchedRule: rule}
		}
	}
	return Verdict{Category: CategoryClean}
}

// matchSpam flags any link whose host is not on the allowlist, then falls
// through to the configured spam patterns.
func (c *Classifier) matchSpam(rules *config.Rules, normalized, collapsed string) (string, bool) {
	for _, url := range urlPattern.FindAllString(normalized, -1) {
		if !isAllowedDomain(rules.AllowedDomains, url) {
			return "link:" + url, true
		}
	}
	return matchAny(rules.SpamPatterns, normalized, collapsed)
}

func isAllowedDomain(allowed []string, url string) bool {
	for _, domain := range allowed {
		if strings.Contains(url, domain) {
			return true
		}
	}
	return false
}

func hasEducationalContext(rules *config.Rules, normalized string) bool {
	for _, keyword := range rules.EducationalKeywords {
		if strings.Contains(normalized, keyword) {
			return true
		}
	}
	return false
}

func matchAny(rules []config.CompiledRule, normalized, collapsed string) (string, bool) {
	for _, rule := range rules {
		if rule.Pattern.MatchString(normalized) || rule.Pattern.MatchString(collapsed) {
			return rule.ID, true
		}
	}
	return "", false
}

// classifyImage maps the analyzer's score onto a verdict. Analyzer failure
// degrades to a clean verdict for the image signal; text rules already ran.
func (c *Classifier) classifyImage(ctx context.Context, imageRef string) Verdict {
	if c.analyzer == nil {
		return Verdict{Category: CategoryClean}
	}
	score, err := c.analyzer.Score(ctx, imageRef)
	if err != nil {
		c.logger.WithError(err).Warn("image analyzer unavailable, skipping image signal")
		if c.onDegraded != nil {
			c.onDegraded(err)
		}
		return Verdict{Category: CategoryClean}
	}
	if score.Confidence < c.confidenceThreshold {
		return Verdict{Category: CategoryClean}
	}
	switch score.Category {
	case vision.CategoryScreenshot:
		return Verdict{Category: CategoryScreenshotThreat, MatchedRule: "image:screenshot", Confidence: score.Confidence}
	case vision.CategoryInappropriate:
		return Verdict{Category: CategoryVulgar, MatchedRule: "image:inappropriate", Confidence: score.Confidence}
	default:
		return Verdict{Category: CategoryClean}
	}
}

// collapseSeparators folds evasion spellings like "f u c k" or "a-l-l-e-n"
// into contiguous words while leaving normal tokens untouched.
func collapseSeparators(text string) string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case '-', '_', '.', '*':
			return true
		}
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	out := make([]string, 0, len(fields))
	run := make([]string, 0, 8)
	flush := func() {
		if len(run) >= 2 {
			out = append(out, strings.Join(run, ""))
		} else {
			out = append(out, run...)
		}
		run = run[:0]
	}
	for _, field := range fields {
		if utf8.RuneCountInString(field) == 1 {
			run = append(run, field)
			continue
		}
		if len(run) > 0 {
			flush()
		}
		out = append(out, field)
	}
	if len(run) > 0 {
		flush()
	}
	return strings.Join(out, " ")
}

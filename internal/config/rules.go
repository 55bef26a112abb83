package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v2"

	"github.com/Shivam4552/Telegram-bot-ocean/resources"
)

// Rules is an immutable snapshot of the keyword and pattern rule sets the
// classifier runs against. A reload builds a fresh snapshot and swaps it
// atomically; snapshots are never mutated after construction.
type Rules struct {
	VulgarWords         []CompiledRule
	CompetitorKeywords  []CompiledRule
	ScreenshotThreats   []CompiledRule
	SpamPatterns        []CompiledRule
	CommercialPatterns  []CompiledRule
	PromotionalPatterns []CompiledRule
	EducationalKeywords []string
	AllowedDomains      []string
}

type CompiledRule struct {
	ID      string
	Pattern *regexp.Regexp
}

type rulesFile struct {
	VulgarWords         []string `yaml:"vulgar_words"`
	CompetitorKeywords  []string `yaml:"competitor_keywords"`
	ScreenshotThreats   []string `yaml:"screenshot_threats"`
	SpamPatterns        []string `yaml:"spam_patterns"`
	CommercialPatterns  []string `yaml:"commercial_patterns"`
	PromotionalPatterns []string `yaml:"promotional_patterns"`
	EducationalKeywords []string `yaml:"educational_keywords"`
	AllowedDomains      []string `yaml:"allowed_domains"`
}

// LoadRules reads a rule file from path, falling back to the embedded
// defaults when path is empty.
func LoadRules(path string) (*Rules, error) {
	var raw []byte
	var err error
	if path != "" {
		raw, err = os.ReadFile(path)
	} else {
		raw, err = resources.FS.ReadFile("rules.yaml")
	}
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(raw)
}

func ParseRules(raw []byte) (*Rules, error) {
	var file rulesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("unmarshal rules: %w", err)
	}

	rules := &Rules{
		EducationalKeywords: file.EducationalKeywords,
		AllowedDomains:      file.AllowedDomains,
	}

	var err error
	if rules.VulgarWords, err = compileWords(file.VulgarWords); err != nil {
		return nil, fmt.Errorf("compile vulgar words: %w", err)
	}
	if rules.CompetitorKeywords, err = compileWords(file.CompetitorKeywords); err != nil {
		return nil, fmt.Errorf("compile competitor keywords: %w", err)
	}
	if rules.ScreenshotThreats, err = compileWords(file.ScreenshotThreats); err != nil {
		return nil, fmt.Errorf("compile screenshot threats: %w", err)
	}
	if rules.SpamPatterns, err = compilePatterns(file.SpamPatterns); err != nil {
		return nil, fmt.Errorf("compile spam patterns: %w", err)
	}
	if rules.CommercialPatterns, err = compilePatterns(file.CommercialPatterns); err != nil {
		return nil, fmt.Errorf("compile commercial patterns: %w", err)
	}
	if rules.PromotionalPatterns, err = compileWords(file.PromotionalPatterns); err != nil {
		return nil, fmt.Errorf("compile promotional patterns: %w", err)
	}
	return rules, nil
}

func compilePatterns(patterns []string) ([]CompiledRule, error) {
	compiled := make([]CompiledRule, 0, len(patterns))
	for _, raw := range patterns {
		pattern, err := regexp.Compile(`(?i)` + raw)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", raw, err)
		}
		compiled = append(compiled, CompiledRule{ID: raw, Pattern: pattern})
	}
	return compiled, nil
}

func compileWords(words []string) ([]CompiledRule, error) {
	compiled := make([]CompiledRule, 0, len(words))
	for _, word := range words {
		pattern, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
		if err != nil {
			return nil, fmt.Errorf("compile word %q: %w", word, err)
		}
		compiled = append(compiled, CompiledRule{ID: word, Pattern: pattern})
	}
	return compiled, nil
}

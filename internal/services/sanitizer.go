package services

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Pre-compiled instruction-override and embedded-markup patterns. Prompts
// matching any of these contribute to the risk score and are stripped from
// the cleaned output.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`<\|.*?\|>`),                                                               // template markers
	regexp.MustCompile(`\{\{.*?\}\}`),                                                             // template injection
	regexp.MustCompile(`\{%.*?%\}`),                                                               // template injection
	regexp.MustCompile(`(?i)(system|instruction|prompt|ignore|disregard)[^.]*?(previous|above|below|instructions|rules|commands)`), // override attempts
	regexp.MustCompile(`###.*?###`),                                                               // separator abuse
	regexp.MustCompile(`\[\[.*?\]\]`),                                                             // wiki-style markers
}

// Markup fragments never allowed in a prompt.
var blockedFragments = []string{
	"<script", "</script", "javascript:", "vbscript:", "onerror=", "onload=", "eval(", "exec(",
}

// Blocklist terms used for the density component of the risk score.
var riskTerms = []string{
	"ignore", "disregard", "override", "jailbreak", "system prompt", "instructions",
}

// SanitizerConfig controls prompt limits and the rejection threshold.
type SanitizerConfig struct {
	MaxLength     int
	RiskThreshold float64
}

// DefaultSanitizerConfig matches the limits of the upstream generation APIs.
func DefaultSanitizerConfig() SanitizerConfig {
	return SanitizerConfig{
		MaxLength:     2000,
		RiskThreshold: 0.5,
	}
}

// PromptSanitizer rejects unsafe or oversized input deterministically. It
// holds no mutable state: identical input always yields the identical
// decision and cleaned text.
type PromptSanitizer struct {
	cfg SanitizerConfig
}

func NewPromptSanitizer(cfg SanitizerConfig) *PromptSanitizer {
	return &PromptSanitizer{cfg: cfg}
}

// Sanitize strips control characters and known injection patterns, enforces
// the length limit, and rejects prompts whose heuristic risk score exceeds
// the configured threshold.
func (s *PromptSanitizer) Sanitize(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", &ValidationError{Reason: ValidationEmpty, Detail: "prompt is empty"}
	}
	// Length is counted in runes so multi-byte scripts get the full limit.
	if utf8.RuneCountInString(raw) > s.cfg.MaxLength {
		return "", &ValidationError{Reason: ValidationSize, Detail: "prompt exceeds maximum length"}
	}

	cleaned := stripControl(raw)

	matches := 0
	for _, pat := range injectionPatterns {
		if pat.MatchString(cleaned) {
			matches++
			cleaned = pat.ReplaceAllString(cleaned, "")
		}
	}

	lower := strings.ToLower(cleaned)
	for _, frag := range blockedFragments {
		if strings.Contains(lower, frag) {
			return "", &ValidationError{Reason: ValidationInjection, Detail: "embedded markup is not allowed"}
		}
	}

	if score := riskScore(cleaned, matches); score > s.cfg.RiskThreshold {
		return "", &ValidationError{Reason: ValidationInjection, Detail: "prompt risk score too high"}
	}

	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return "", &ValidationError{Reason: ValidationEmpty, Detail: "prompt empty after sanitization"}
	}
	return cleaned, nil
}

// riskScore combines blocklist term density with the number of matched
// injection patterns. Pattern matches dominate: two or more always push the
// score past any sensible threshold.
func riskScore(text string, patternMatches int) float64 {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return 0
	}

	hits := 0
	lower := strings.ToLower(text)
	for _, term := range riskTerms {
		hits += strings.Count(lower, term)
	}

	density := float64(hits) / float64(len(words))
	return density + 0.3*float64(patternMatches)
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

package service

import (
	"regexp"
	"strings"
	"unicode"
)

// ModerationResult reports every issue category detected in a message
// body. Submission is blocked on profanity and phone numbers; emails are
// reported but not blocking.
type ModerationResult struct {
	IsValid        bool
	HasProfanity   bool
	HasPhoneNumber bool
	HasEmail       bool
	BlockedReason  string
	Issues         []string
}

// ModerationService screens outgoing message content before it is
// encrypted and stored. Matching has two tiers: exact word-boundary hits
// on the lowercased text, and a normalized substring pass (separators
// collapsed, leetspeak substituted) for terms of four or more runes.
type ModerationService struct {
	phonePatterns []*regexp.Regexp
	emailPattern  *regexp.Regexp
}

// NewModerationService compiles the detection patterns.
func NewModerationService() *ModerationService {
	return &ModerationService{
		// Local numbering first: country code and leading-zero mobile
		// prefixes with optional separators, then a generic
		// international fallback.
		phonePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(\+90|0090)[\s.\-]?5\d{2}[\s.\-]?\d{3}[\s.\-]?\d{2}[\s.\-]?\d{2}`),
			regexp.MustCompile(`\b05\d{2}[\s.\-]?\d{3}[\s.\-]?\d{2}[\s.\-]?\d{2}\b`),
			regexp.MustCompile(`\b0\d{3}[\s.\-]?\d{3}[\s.\-]?\d{2}[\s.\-]?\d{2}\b`),
			regexp.MustCompile(`\+\d{1,3}[\s.\-]?\d{3}[\s.\-]?\d{3}[\s.\-]?\d{2,4}`),
		},
		emailPattern: regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
	}
}

// ValidateContent reports all detected issue categories and decides
// whether the message may be stored.
func (s *ModerationService) ValidateContent(text string) ModerationResult {
	result := ModerationResult{IsValid: true}

	if s.containsProfanity(text) {
		result.HasProfanity = true
		result.Issues = append(result.Issues, "profanity")
	}
	if s.findPhoneNumbers(text) != nil {
		result.HasPhoneNumber = true
		result.Issues = append(result.Issues, "phone_number")
	}
	if s.emailPattern.MatchString(text) {
		result.HasEmail = true
		result.Issues = append(result.Issues, "email")
	}

	switch {
	case result.HasProfanity:
		result.IsValid = false
		result.BlockedReason = "message contains inappropriate language"
	case result.HasPhoneNumber:
		result.IsValid = false
		result.BlockedReason = "sharing phone numbers in messages is not allowed"
	}
	return result
}

// SanitizeContent redacts instead of rejecting: profanity is replaced by
// equal-length masking, obfuscated spellings caught by the normalized pass
// are masked in place, and phone numbers keep only their last two digits.
func (s *ModerationService) SanitizeContent(text string) string {
	sanitized := s.maskProfanityTokens(text)
	sanitized = s.maskObfuscatedProfanity(sanitized)
	for _, pattern := range s.phonePatterns {
		sanitized = pattern.ReplaceAllStringFunc(sanitized, maskPhoneNumber)
	}
	return sanitized
}

func (s *ModerationService) containsProfanity(text string) bool {
	lowered := lowerTurkish(text)
	tokens := tokenize(lowered)
	tokenSet := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = true
	}

	// Tier 1: exact word-boundary matches.
	for _, terms := range profanityBlocklists {
		for _, term := range terms {
			if tokenSet[term] {
				return true
			}
		}
	}

	// Ambiguous short tokens count only in Turkish-looking text.
	if isTurkishContext(text, tokens) {
		for token := range turkishOnlyShortTokens {
			if tokenSet[token] {
				return true
			}
		}
	}

	// Tier 2: normalized substring matches for longer terms, to catch
	// leetspeak and spaced-out obfuscation.
	normalized := normalizeForMatching(lowered)
	for _, terms := range profanityBlocklists {
		for _, term := range terms {
			if len([]rune(term)) < 4 {
				continue
			}
			if strings.Contains(normalized, term) {
				return true
			}
		}
	}
	return false
}

// isTurkishContext decides whether ambiguous short tokens should count as
// Turkish profanity: any Turkish diacritic, or two hits on the fixed
// common-word list, or a 30% token ratio.
func isTurkishContext(text string, tokens []string) bool {
	for _, r := range text {
		if turkishDiacritics[r] {
			return true
		}
	}
	if len(tokens) == 0 {
		return false
	}
	hits := 0
	for _, token := range tokens {
		if turkishCommonWords[token] {
			hits++
		}
	}
	if hits >= 2 {
		return true
	}
	return float64(hits)/float64(len(tokens)) >= 0.3
}

// maskProfanityTokens replaces exact blocklist tokens with equal-length
// masking, preserving everything else byte for byte.
func (s *ModerationService) maskProfanityTokens(text string) string {
	runes := []rune(text)
	tokens := tokenize(lowerTurkish(text))
	turkish := isTurkishContext(text, tokens)

	var out strings.Builder
	i := 0
	for i < len(runes) {
		if !isTokenRune(runes[i]) {
			out.WriteRune(runes[i])
			i++
			continue
		}
		j := i
		for j < len(runes) && isTokenRune(runes[j]) {
			j++
		}
		word := string(runes[i:j])
		if s.isBlockedToken(lowerTurkish(word), turkish) {
			out.WriteString(strings.Repeat("*", j-i))
		} else {
			out.WriteString(word)
		}
		i = j
	}
	return out.String()
}

// maskObfuscatedProfanity masks the same leetspeak and spaced-out hits the
// normalized substring pass blocks. The normalized text is built with a map
// back to original rune positions; every rune that feeds a matched term is
// replaced, separators between them stay.
func (s *ModerationService) maskObfuscatedProfanity(text string) string {
	runes := []rune(text)
	lowered := []rune(lowerTurkish(text))

	var normalized []rune
	var sourceIdx []int
	for i, r := range lowered {
		if separatorRunes[r] {
			continue
		}
		if sub, ok := leetSubstitutions[r]; ok {
			r = sub
		}
		normalized = append(normalized, r)
		sourceIdx = append(sourceIdx, i)
	}

	masked := make([]bool, len(runes))
	hit := false
	for _, terms := range profanityBlocklists {
		for _, term := range terms {
			t := []rune(term)
			if len(t) < 4 {
				continue
			}
			for i := 0; i+len(t) <= len(normalized); i++ {
				match := true
				for j := range t {
					if normalized[i+j] != t[j] {
						match = false
						break
					}
				}
				if !match {
					continue
				}
				for j := i; j < i+len(t); j++ {
					masked[sourceIdx[j]] = true
					hit = true
				}
			}
		}
	}
	if !hit {
		return text
	}

	var out strings.Builder
	out.Grow(len(text))
	for i, r := range runes {
		if masked[i] {
			out.WriteRune('*')
			continue
		}
		out.WriteRune(r)
	}
	return out.String()
}

func (s *ModerationService) isBlockedToken(token string, turkishContext bool) bool {
	for _, terms := range profanityBlocklists {
		for _, term := range terms {
			if token == term {
				return true
			}
		}
	}
	return turkishContext && turkishOnlyShortTokens[token]
}

// maskPhoneNumber masks every digit but the final two, keeping separators
// in place so the shape of the number stays recognizable.
func maskPhoneNumber(match string) string {
	runes := []rune(match)
	digitTotal := 0
	for _, r := range runes {
		if unicode.IsDigit(r) {
			digitTotal++
		}
	}
	seen := 0
	var out strings.Builder
	for _, r := range runes {
		if unicode.IsDigit(r) {
			seen++
			if seen <= digitTotal-2 {
				out.WriteRune('*')
				continue
			}
		}
		out.WriteRune(r)
	}
	return out.String()
}

// tokenize splits text into letter/digit runs.
func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !isTokenRune(r)
	})
}

func isTokenRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// lowerTurkish lowercases with the dotted/dotless i pair handled the
// Turkish way so İ matches i and I matches ı.
func lowerTurkish(text string) string {
	var out strings.Builder
	out.Grow(len(text))
	for _, r := range text {
		switch r {
		case 'İ':
			out.WriteRune('i')
		case 'I':
			out.WriteRune('ı')
		default:
			out.WriteRune(unicode.ToLower(r))
		}
	}
	return out.String()
}

// normalizeForMatching collapses separators and applies the leetspeak
// substitution table before substring search.
func normalizeForMatching(lowered string) string {
	var out strings.Builder
	out.Grow(len(lowered))
	for _, r := range lowered {
		if separatorRunes[r] {
			continue
		}
		if sub, ok := leetSubstitutions[r]; ok {
			out.WriteRune(sub)
			continue
		}
		out.WriteRune(r)
	}
	return out.String()
}

func (s *ModerationService) findPhoneNumbers(text string) []string {
	var matches []string
	for _, pattern := range s.phonePatterns {
		matches = append(matches, pattern.FindAllString(text, -1)...)
	}
	if len(matches) == 0 {
		return nil
	}
	return matches
}

package logging

import "regexp"

// Sanitizer redacts secrets from log output.
type Sanitizer struct {
	patterns []*regexp.Regexp
	redacted string
}

// NewSanitizer creates a sanitizer with the default patterns.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		patterns: defaultPatterns(),
		redacted: "[REDACTED]",
	}
}

func defaultPatterns() []*regexp.Regexp {
	patterns := []string{
		// Google AI / Gemini API keys
		`AIza[a-zA-Z0-9_-]{35}`,
		// key=... in request URLs
		`([?&]key=)[^&\s"']+`,
		// x-goog-api-key header values
		`(?i)x-goog-api-key["'\s:=]+[a-zA-Z0-9_-]{20,}`,
		// Credentials embedded in nats:// or http(s):// URLs
		`((?:nats|tls|https?)://[^:/\s]+:)[^@\s]+(@)`,
		// Generic Bearer tokens
		`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`,
		// Generic API keys
		`(?i)api[_-]?key["'\s:=]+[a-zA-Z0-9_-]{20,}`,
		// Generic tokens
		`(?i)token["'\s:=]+[a-zA-Z0-9_-]{20,}`,
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

// Sanitize redacts secrets from a string. Patterns with capture groups keep
// the surrounding syntax so URLs stay readable.
func (s *Sanitizer) Sanitize(input string) string {
	result := input
	for _, pattern := range s.patterns {
		switch pattern.NumSubexp() {
		case 1:
			result = pattern.ReplaceAllString(result, "${1}"+s.redacted)
		case 2:
			result = pattern.ReplaceAllString(result, "${1}"+s.redacted+"${2}")
		default:
			result = pattern.ReplaceAllString(result, s.redacted)
		}
	}
	return result
}

// AddPattern adds a custom pattern.
func (s *Sanitizer) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	s.patterns = append(s.patterns, re)
	return nil
}

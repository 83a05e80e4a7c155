package redact

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Placeholder replaces every detected secret.
const Placeholder = "[REDACTED]"

type pattern struct {
	kind string
	re   *regexp.Regexp
}

// patterns are regex heuristics for common secret types. Order matters: the
// more specific shapes run before the generic ones.
var patterns = []pattern{
	{"private-key", regexp.MustCompile(`-----BEGIN\s+([A-Z]+\s+)?PRIVATE KEY-----`)},
	{"aws-access-key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"aws-secret-key", regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`)},
	{"api-key", regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`)},
	{"credential", regexp.MustCompile(`(?i)(secret|token|password|passwd|credential)\s*[:=]\s*["']([^"']{8,})["']`)},
	{"bearer-token", regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`)},
	{"jwt", regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`)},
	{"connection-string", regexp.MustCompile(`(?i)\b(postgres(ql)?|mysql|mongodb(\+srv)?|redis|amqp)://[^\s:/@]+:[^\s@]+@[^\s]+`)},
	{"github-token", regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`)},
	{"slack-token", regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`)},
	{"anthropic-key", regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`)},
	{"openai-key", regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`)},
	{"hex-secret", regexp.MustCompile(`(?i)(key|secret|token)\s*[:=]\s*["']?[0-9a-f]{32,}["']?`)},
}

// Finding counts the redactions of one secret kind.
type Finding struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// Secrets replaces detected secrets in text with Placeholder.
func Secrets(text string) string {
	out, _ := Document(text)
	return out
}

// Document redacts text and reports what was replaced, sorted by kind.
func Document(text string) (string, []Finding) {
	counts := map[string]int{}
	for _, p := range patterns {
		text = p.re.ReplaceAllStringFunc(text, func(string) string {
			counts[p.kind]++
			return Placeholder
		})
	}
	if len(counts) == 0 {
		return text, nil
	}
	findings := make([]Finding, 0, len(counts))
	for k, n := range counts {
		findings = append(findings, Finding{Kind: k, Count: n})
	}
	sort.Slice(findings, func(i, j int) bool { return findings[i].Kind < findings[j].Kind })
	return text, findings
}

// Total sums the counts of findings.
func Total(findings []Finding) int {
	n := 0
	for _, f := range findings {
		n += f.Count
	}
	return n
}

// ShouldRedactPath reports whether path matches any sensitive-path pattern.
// Patterns prefixed with "**/" also match on the base name alone.
func ShouldRedactPath(path string, patterns []string) bool {
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, path)
		if err == nil && matched {
			return true
		}
		cleanPattern := strings.TrimPrefix(pattern, "**/")
		if cleanPattern != pattern {
			matched, err = filepath.Match(cleanPattern, filepath.Base(path))
			if err == nil && matched {
				return true
			}
		}
	}
	return false
}

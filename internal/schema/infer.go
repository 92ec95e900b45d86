// Package schema locates semantically named columns in loosely specified
// tabular headers.
//
// City exports rename columns between releases ("DATETIMEINIT" becomes
// "DateTimeInit", "Request Date" or "date_requested"). A [Rule] describes one
// semantic field as a list of canonical names plus ranked keyword fallbacks,
// and [Infer] picks the first header that satisfies it. Failing to find a
// column is a normal outcome: many fields are optional.
package schema

import "strings"

// NotFound is returned by Infer when no header satisfies a rule.
const NotFound = ""

// Rule locates one semantic field in a header.
//
// Exact names are compared case-insensitively. Each fallback rank is a list
// of alternatives and each alternative is one or more keywords joined by "+",
// all of which must appear (case-insensitively) in the header.
type Rule struct {
	Exact    []string   `yaml:"exact"`
	Fallback [][]string `yaml:"fallback"`
}

// Infer returns the first header matching rule, trying exact names first and
// then each fallback rank in order. Within a pass headers are scanned in the
// order given, so the result depends only on the header sequence.
func Infer(header []string, rule Rule) string {
	if len(rule.Exact) > 0 {
		for _, h := range header {
			for _, name := range rule.Exact {
				if strings.EqualFold(strings.TrimSpace(h), name) {
					return h
				}
			}
		}
	}

	for _, rank := range rule.Fallback {
		for _, h := range header {
			lower := strings.ToLower(h)
			for _, alt := range rank {
				if containsAll(lower, alt) {
					return h
				}
			}
		}
	}
	return NotFound
}

func containsAll(lowerHeader, alternative string) bool {
	matched := false
	for _, kw := range strings.Split(alternative, "+") {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if !strings.Contains(lowerHeader, kw) {
			return false
		}
		matched = true
	}
	return matched
}

package queue

import "strings"

// Symptom severity weights.
const (
	veryUrgentWeight = 5.0
	mediumWeight     = 3.0
	defaultWeight    = 1.0

	minPriority = 1.0
	maxPriority = 10.0
)

var veryUrgentSymptoms = map[string]struct{}{
	"chest_pain":           {},
	"shortness_of_breath":  {},
	"unconscious":          {},
	"difficulty_breathing": {},
}

var mediumSymptoms = map[string]struct{}{
	"fever":    {},
	"vomiting": {},
	"diarrhea": {},
}

// NormalizeSymptoms lowercases, trims and deduplicates symptoms while
// preserving first-seen order.
func NormalizeSymptoms(symptoms []string) []string {
	seen := make(map[string]struct{}, len(symptoms))
	out := make([]string, 0, len(symptoms))
	for _, s := range symptoms {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Score computes a triage priority from a symptom list. Duplicate
// symptoms count once regardless of case. The result is clamped to
// [1.0, 10.0].
func Score(symptoms []string) float64 {
	total := 0.0
	for _, s := range NormalizeSymptoms(symptoms) {
		switch {
		case isVeryUrgent(s):
			total += veryUrgentWeight
		case isMedium(s):
			total += mediumWeight
		default:
			total += defaultWeight
		}
	}
	if total < minPriority {
		return minPriority
	}
	if total > maxPriority {
		return maxPriority
	}
	return total
}

func isVeryUrgent(s string) bool {
	_, ok := veryUrgentSymptoms[s]
	return ok
}

func isMedium(s string) bool {
	_, ok := mediumSymptoms[s]
	return ok
}

// severityFactor shortens predicted waits for high-priority entries.
// Priorities of 8 or more wait at half rate, 5 or more at three
// quarters, everything else at full rate.
func severityFactor(priority float64) float64 {
	switch {
	case priority >= 8:
		return 0.5
	case priority >= 5:
		return 0.75
	default:
		return 1.0
	}
}

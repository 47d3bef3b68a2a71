package policy

import (
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// Invariant is a named protocol property that no proposal may defeat.
type Invariant struct {
	Name        string
	Description string
	// patterns are lower-case substrings whose presence in a payload marks
	// a likely violation attempt.
	patterns []string
}

// Invariants is the fixed list of immutable protocol properties. The list
// itself is append-only across versions; entries are never removed.
var Invariants = []Invariant{
	{
		Name:        "consensus_requires_quorum",
		Description: "binding decisions require the configured quorum of approvals",
		patterns: []string{
			"quorum = 0", "quorum=0", "quorum: 0", "required_quorum = 0",
			"requiredquorum = 0", "bypass consensus", "skip quorum", "disable quorum",
		},
	},
	{
		Name:        "evaluators_are_independent",
		Description: "council members share no state and do not communicate",
		patterns: []string{
			"shared evaluator state", "evaluator broadcast", "link evaluators",
			"evaluators share", "cross-evaluator",
		},
	},
	{
		Name:        "audit_log_is_append_only",
		Description: "lifecycle events are immutable once appended",
		patterns: []string{
			"delete from events", "truncate events", "rewrite history",
			"drop event", "mutate event log", "edit audit log",
		},
	},
	{
		Name:        "sealed_evaluations_are_immutable",
		Description: "an evaluation is never modified after sealing",
		patterns: []string{
			"reseal", "re-seal", "unseal evaluation", "modify sealed",
		},
	},
	{
		Name:        "council_size_is_fixed",
		Description: "every council has exactly the configured number of seats",
		patterns: []string{
			"council_size = 0", "council_size = 1", "councilsize = 1",
			"single evaluator council", "shrink council",
		},
	},
}

// Violations scans a proposal payload for textual attempts to defeat the
// protocol invariants and returns the names of invariants that appear to be
// targeted.
//
// The scan is heuristic defense-in-depth, not a security boundary: it
// matches known phrasings and will miss obfuscated payloads. When the
// payload parses as a unified diff only added lines are scanned, so that a
// change which merely deletes or moves an offending line is not flagged.
func Violations(payload string) []string {
	if payload == "" {
		return nil
	}
	subject := strings.ToLower(scanSubject(payload))
	var violated []string
	for _, invariant := range Invariants {
		for _, pattern := range invariant.patterns {
			if strings.Contains(subject, pattern) {
				violated = append(violated, invariant.Name)
				break
			}
		}
	}
	return violated
}

// scanSubject narrows a unified-diff payload to its added lines; any other
// payload is scanned verbatim.
func scanSubject(payload string) string {
	if !strings.Contains(payload, "@@") {
		return payload
	}
	files, err := diff.ParseMultiFileDiff([]byte(payload))
	if err != nil || len(files) == 0 {
		return payload
	}
	var added strings.Builder
	for _, file := range files {
		for _, hunk := range file.Hunks {
			for _, line := range strings.Split(string(hunk.Body), "\n") {
				if strings.HasPrefix(line, "+") {
					added.WriteString(strings.TrimPrefix(line, "+"))
					added.WriteString("\n")
				}
			}
		}
	}
	return added.String()
}

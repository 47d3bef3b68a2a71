package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestViolations(t *testing.T) {
	testCases := []struct {
		description string
		payload     string
		expected    []string
	}{
		{
			description: "clean payload",
			payload:     "add caching to the retrieval service",
			expected:    nil,
		},
		{
			description: "empty payload",
			payload:     "",
			expected:    nil,
		},
		{
			description: "quorum bypass attempt",
			payload:     "set required_quorum = 0 for faster iteration",
			expected:    []string{"consensus_requires_quorum"},
		},
		{
			description: "case insensitive match",
			payload:     "BYPASS CONSENSUS for hotfixes",
			expected:    []string{"consensus_requires_quorum"},
		},
		{
			description: "audit log mutation attempt",
			payload:     "truncate events older than a week",
			expected:    []string{"audit_log_is_append_only"},
		},
		{
			description: "multiple invariants targeted",
			payload:     "skip quorum and shrink council to speed things up",
			expected:    []string{"consensus_requires_quorum", "council_size_is_fixed"},
		},
		{
			description: "seal tampering attempt",
			payload:     "unseal evaluation records for correction",
			expected:    []string{"sealed_evaluations_are_immutable"},
		},
	}
	for _, testCase := range testCases {
		actual := Violations(testCase.payload)
		assert.Equal(t, testCase.expected, actual, testCase.description)
	}
}

func TestViolationsDiffAware(t *testing.T) {
	// only added lines of a unified diff are scanned
	removal := `--- a/config.yaml
+++ b/config.yaml
@@ -1,3 +1,2 @@
 council:
-  note: never bypass consensus
   size: 7
`
	assert.Empty(t, Violations(removal))

	addition := `--- a/config.yaml
+++ b/config.yaml
@@ -1,2 +1,3 @@
 council:
   size: 7
+  quorum: 0
`
	assert.Equal(t, []string{"consensus_requires_quorum"}, Violations(addition))
}

func TestViolationsMalformedDiffFallsBack(t *testing.T) {
	// a payload that looks like a diff but does not parse is scanned verbatim
	payload := "@@ not a real hunk @@ skip quorum"
	assert.Equal(t, []string{"consensus_requires_quorum"}, Violations(payload))
}

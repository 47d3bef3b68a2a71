package policy

import "strings"

// CouncilSize is the fixed number of evaluators spawned per proposal. All
// quorum thresholds below are expressed out of this size.
const CouncilSize = 7

// Quorum thresholds per risk tier.
const (
	MetaQuorum    = 6 // governance / protocol changes
	DefaultQuorum = 5 // everything else
	LowRiskQuorum = 4 // documentation, tests
)

// metaTopics are topics that change the rules of the system itself.
var metaTopics = []string{
	"governance",
	"meta",
	"constitution",
	"invariant",
	"quorum",
	"consensus_rule",
}

// lowRiskTopics are topics with a small blast radius.
var lowRiskTopics = []string{
	"documentation",
	"docs",
	"test",
	"comment",
	"formatting",
}

// IsMetaChange reports whether the topic touches governance of the system
// itself and therefore requires the near-unanimous quorum.
func IsMetaChange(topic string) bool {
	return matchesAny(topic, metaTopics)
}

// IsLowRisk reports whether the topic belongs to the low-risk tier.
func IsLowRisk(topic string) bool {
	return matchesAny(topic, lowRiskTopics)
}

// QuorumFor maps a topic to the approve (or reject) count required for a
// binding decision. The topic tag is open ended; classification is by
// substring so that extensions such as "governance_change" or
// "documentation_change" land in the right tier.
func QuorumFor(topic string) int {
	switch {
	case IsMetaChange(topic):
		return MetaQuorum
	case IsLowRisk(topic):
		return LowRiskQuorum
	default:
		return DefaultQuorum
	}
}

// MeetsQuorum reports whether approveCount reaches the quorum for topic.
func MeetsQuorum(approveCount int, topic string) bool {
	return approveCount >= QuorumFor(topic)
}

func matchesAny(topic string, candidates []string) bool {
	normalized := strings.ToLower(topic)
	for _, candidate := range candidates {
		if strings.Contains(normalized, candidate) {
			return true
		}
	}
	return false
}

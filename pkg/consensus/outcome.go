package consensus

// Outcome classifies the result of processing one certificate. Every variant
// other than OutcomeCommit is a normal "not yet" answer, not a failure.
type Outcome uint8

const (
	OutcomeCommit Outcome = iota
	OutcomeCertificateBelowCommitRound
	OutcomeNoLeaderElectedForOddRound
	OutcomeLeaderBelowCommitRound
	OutcomeLeaderNotFound
	OutcomeNotEnoughSupportForLeader
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCommit:
		return "commit"
	case OutcomeCertificateBelowCommitRound:
		return "certificate_below_commit_round"
	case OutcomeNoLeaderElectedForOddRound:
		return "no_leader_elected_for_odd_round"
	case OutcomeLeaderBelowCommitRound:
		return "leader_below_commit_round"
	case OutcomeLeaderNotFound:
		return "leader_not_found"
	case OutcomeNotEnoughSupportForLeader:
		return "not_enough_support_for_leader"
	default:
		return "unknown"
	}
}

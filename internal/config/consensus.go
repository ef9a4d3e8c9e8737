package config

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/tcfw/bullshark/pkg/committee"
)

type Consensus struct {
	GCDepth                uint64
	SubDagsPerSchedule     uint64
	BadNodesStakeThreshold int
	LeaderRule             string
	StorePath              string

	Epoch       uint64
	Authorities []CommitteeMember
}

type CommitteeMember struct {
	ID    uint32 `mapstructure:"id"`
	Stake int64  `mapstructure:"stake"`
}

const (
	Cfg_consensus_gcDepth            = "consensus.gcDepth"
	Cfg_consensus_subDagsPerSchedule = "consensus.subDagsPerSchedule"
	Cfg_consensus_badNodesThreshold  = "consensus.badNodesStakeThreshold"
	Cfg_consensus_leaderRule         = "consensus.leaderRule"
	Cfg_consensus_storePath          = "consensus.storePath"
	Cfg_consensus_epoch              = "consensus.epoch"
	Cfg_consensus_committee          = "consensus.committee"
)

var (
	consensusDefaults = map[string]interface{}{
		Cfg_consensus_gcDepth:            50,
		Cfg_consensus_subDagsPerSchedule: 300,
		Cfg_consensus_badNodesThreshold:  0,
		Cfg_consensus_leaderRule:         "stake-weighted",
		Cfg_consensus_storePath:          "./consensus-store",
		Cfg_consensus_epoch:              0,
	}
)

func init() {
	for k, v := range consensusDefaults {
		viper.SetDefault(k, v)
	}
}

func buildConsensusConfig() (*Consensus, error) {
	c := &Consensus{}

	c.GCDepth = viper.GetUint64(Cfg_consensus_gcDepth)
	c.SubDagsPerSchedule = viper.GetUint64(Cfg_consensus_subDagsPerSchedule)
	c.BadNodesStakeThreshold = viper.GetInt(Cfg_consensus_badNodesThreshold)
	c.LeaderRule = viper.GetString(Cfg_consensus_leaderRule)
	c.StorePath = viper.GetString(Cfg_consensus_storePath)
	c.Epoch = viper.GetUint64(Cfg_consensus_epoch)

	if err := viper.UnmarshalKey(Cfg_consensus_committee, &c.Authorities); err != nil {
		return nil, errors.Wrap(err, "parsing committee members")
	}

	return c, nil
}

// Committee builds the stake table from the configured members.
func (c *Consensus) Committee() (*committee.Committee, error) {
	authorities := make([]*committee.Authority, 0, len(c.Authorities))
	for _, m := range c.Authorities {
		authorities = append(authorities, &committee.Authority{
			ID:    committee.ID(m.ID),
			Stake: m.Stake,
		})
	}
	return committee.New(c.Epoch, authorities)
}

// Rule resolves the configured leader election rule.
func (c *Consensus) Rule() (committee.Rule, error) {
	switch c.LeaderRule {
	case "stake-weighted":
		return committee.StakeWeighted, nil
	case "round-robin":
		return committee.RoundRobin, nil
	default:
		return nil, errors.Errorf("unknown leader rule %q", c.LeaderRule)
	}
}

package shelter

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Proposal subsystem: pool maintenance, quorum evaluation and the
// name:amount allocation-plan grammar.
//
// The pool is a slice appended to at proposal time, so iteration order is
// creation order (ascending creation day, then creation sequence). Proposal
// resolution depends on that order: the first pending proposal to satisfy
// its quorum wins the day.

// pruneProposals drops everything that is no longer pending. Runs at the
// start of each day; approved proposals were applied the day they passed,
// rejected ones are dead weight.
func (s *Shelter) pruneProposals() {
	kept := s.proposals[:0]
	for _, p := range s.proposals {
		if p.Status == StatusPending {
			kept = append(kept, p)
		}
	}
	s.proposals = kept
}

// createProposal adds a new pending proposal to the pool and returns it.
func (s *Shelter) createProposal(proposer string, ptype ProposalType, content string) *Proposal {
	p := &Proposal{
		ID:       fmt.Sprintf("%d_%s_%d", s.day, proposer, s.nextSeq),
		Proposer: proposer,
		Type:     ptype,
		Content:  content,
		Day:      s.day,
		Status:   StatusPending,
	}
	s.nextSeq++
	s.proposals = append(s.proposals, p)
	return p
}

// findProposal returns the proposal with the given id, or nil.
func (s *Shelter) findProposal(id string) *Proposal {
	for _, p := range s.proposals {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// castVote records a vote on a proposal. Returns an error describing why the
// vote was dropped; the caller records it as a warning event rather than
// failing the day.
func (s *Shelter) castVote(voter, proposalID string, support bool) error {
	p := s.findProposal(proposalID)
	if p == nil {
		return fmt.Errorf("unknown proposal %q", proposalID)
	}
	if !p.Votable(s.day) {
		return fmt.Errorf("proposal %s not votable until day %d", p.ID, p.Day+1)
	}
	if p.HasVoted(voter) {
		return fmt.Errorf("%s already voted on %s", voter, p.ID)
	}
	if support {
		p.Supporters = append(p.Supporters, voter)
	} else {
		p.Opposers = append(p.Opposers, voter)
	}
	return nil
}

// quorumMet evaluates a proposal's type-specific approval condition against
// the current count of living agents.
func quorumMet(p *Proposal, aliveCount int) bool {
	sup := len(p.Supporters)
	opp := len(p.Opposers)

	switch p.Type {
	case ProposalEliminationVote:
		return sup > opp && sup >= (aliveCount*2)/3
	case ProposalAppeal:
		return sup > opp*2 && sup >= (aliveCount*2)/3
	default: // resource_allocation and anything unrecognized
		return sup > opp && sup >= aliveCount/2
	}
}

// resolveProposals evaluates pending proposals created on a prior day, in
// creation order. The first to satisfy its quorum is approved and returned;
// at most one proposal is approved per day. Proposals that have had at least
// one full day of vote eligibility and still fail are rejected.
func (s *Shelter) resolveProposals() *Proposal {
	aliveCount := len(s.aliveNames())

	for _, p := range s.proposals {
		if p.Status != StatusPending || p.Day >= s.day {
			continue
		}

		if quorumMet(p, aliveCount) {
			p.Status = StatusApproved
			slog.Info("proposal approved",
				"id", p.ID,
				"type", p.Type,
				"supporters", len(p.Supporters),
				"opposers", len(p.Opposers),
				"alive", aliveCount,
			)
			return p
		}

		if s.day > p.Day+1 {
			p.Status = StatusRejected
			slog.Debug("proposal rejected",
				"id", p.ID,
				"type", p.Type,
				"supporters", len(p.Supporters),
				"opposers", len(p.Opposers),
			)
		}
	}
	return nil
}

// ParseAllocationPlan parses the "name:amount,name:amount" grammar of a
// resource_allocation proposal. Valid entries are always returned; a non-nil
// error reports the malformed segments so the caller can surface a warning
// instead of silently discarding them.
func ParseAllocationPlan(content string) (map[string]int, error) {
	plan := make(map[string]int)
	var bad []string

	for _, part := range strings.Split(content, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, amountStr, ok := strings.Cut(part, ":")
		if !ok {
			bad = append(bad, part)
			continue
		}
		amount, err := strconv.Atoi(strings.TrimSpace(amountStr))
		if err != nil || amount < 0 {
			bad = append(bad, part)
			continue
		}
		plan[strings.TrimSpace(name)] = amount
	}

	if len(bad) > 0 {
		return plan, fmt.Errorf("malformed allocation segments: %s", strings.Join(bad, "; "))
	}
	return plan, nil
}

package shelter

import (
	"fmt"
	"log/slog"
)

// Action execution (phase 2). Actions are consumed in decision order; each
// pays its action-point price up front. An unaffordable action is skipped,
// not aborted, and execution stops early if the agent is eliminated
// mid-phase.

// executeAgentActions runs one agent's action list and returns the tokens
// consumed by the executed actions.
func (s *Shelter) executeAgentActions(name string, actions []Action, dayEvents *[]Event) int {
	a := s.agents[name]
	tokens := 0

	for _, action := range actions {
		if a.ActionPoints <= 0 || !a.Alive {
			break
		}
		cost := s.actionCost(action.Type)
		if a.ActionPoints < cost {
			slog.Debug("action skipped, insufficient points",
				"agent", name, "action", action.Type, "cost", cost, "points", a.ActionPoints)
			continue
		}

		switch action.Type {
		case ActionPropose:
			s.handlePropose(name, action, dayEvents)
		case ActionVote:
			s.handleVote(name, action, dayEvents)
		case ActionPrivateMessage:
			s.handlePrivateMessage(name, action, dayEvents)
		case ActionCallMeeting:
			s.handleCallMeeting(name, action, dayEvents)
		case ActionDoNothing:
			// Free and inert.
		default:
			slog.Warn("unknown action type", "agent", name, "action", action.Type)
			continue
		}

		a.ActionPoints -= cost
		tokenCost := cost * s.cfg.TokensPerActionPoint
		a.TokensToday += tokenCost
		tokens += tokenCost

		slog.Debug("action executed",
			"agent", name,
			"action", action.Type,
			"ap_cost", cost,
			"token_cost", tokenCost,
			"ap_left", a.ActionPoints,
		)
	}
	return tokens
}

func (s *Shelter) handlePropose(proposer string, action Action, dayEvents *[]Event) {
	ptype := action.ProposalType
	switch ptype {
	case ProposalResourceAllocation, ProposalEliminationVote, ProposalAppeal:
	default:
		ptype = ProposalResourceAllocation
	}

	p := s.createProposal(proposer, ptype, action.Content)

	*dayEvents = append(*dayEvents, Event{
		Day:     s.day,
		Type:    EventPropose,
		Actor:   proposer,
		Content: fmt.Sprintf("%s proposed (%s): %s", proposer, ptype, action.Content),
		Details: map[string]any{"proposal_id": p.ID, "proposal_type": string(ptype)},
	})
	s.addEvent(proposer, Event{
		Day:     s.day,
		Type:    EventPropose,
		Actor:   proposer,
		Content: fmt.Sprintf("proposed (%s): %s", ptype, action.Content),
		Details: map[string]any{"proposal_id": p.ID},
	})
}

func (s *Shelter) handleVote(voter string, action Action, dayEvents *[]Event) {
	if err := s.castVote(voter, action.ProposalID, action.Support); err != nil {
		// Invalid votes are no-ops, but leave a trace instead of vanishing.
		*dayEvents = append(*dayEvents, Event{
			Day:     s.day,
			Type:    EventWarning,
			Actor:   voter,
			Content: fmt.Sprintf("vote dropped: %v", err),
		})
		slog.Debug("vote dropped", "voter", voter, "proposal", action.ProposalID, "error", err)
		return
	}

	stance := "opposed"
	if action.Support {
		stance = "supported"
	}
	*dayEvents = append(*dayEvents, Event{
		Day:     s.day,
		Type:    EventVote,
		Actor:   voter,
		Content: fmt.Sprintf("%s %s proposal %s", voter, stance, action.ProposalID),
		Details: map[string]any{"proposal_id": action.ProposalID, "support": action.Support},
	})
	s.addEvent(voter, Event{
		Day:     s.day,
		Type:    EventVote,
		Actor:   voter,
		Content: fmt.Sprintf("%s proposal %s", stance, action.ProposalID),
	})
}

func (s *Shelter) handlePrivateMessage(sender string, action Action, dayEvents *[]Event) {
	target, ok := s.agents[action.Target]
	if !ok || !target.Alive {
		*dayEvents = append(*dayEvents, Event{
			Day:     s.day,
			Type:    EventWarning,
			Actor:   sender,
			Content: fmt.Sprintf("message dropped: no living agent %q", action.Target),
		})
		return
	}

	*dayEvents = append(*dayEvents, Event{
		Day:     s.day,
		Type:    EventChat,
		Actor:   sender,
		Content: fmt.Sprintf("%s messaged %s: %s", sender, action.Target, action.Content),
		Details: map[string]any{"target": action.Target},
	})
	s.addEvent(sender, Event{
		Day:     s.day,
		Type:    EventChat,
		Actor:   sender,
		Content: fmt.Sprintf("messaged %s: %s", action.Target, action.Content),
	})
	// The target only sees this at its next decision, so delivery is
	// effectively one day delayed.
	s.addEvent(action.Target, Event{
		Day:     s.day,
		Type:    EventChat,
		Actor:   sender,
		Content: fmt.Sprintf("received message from %s: %s", sender, action.Content),
	})
}

func (s *Shelter) handleCallMeeting(caller string, action Action, dayEvents *[]Event) {
	*dayEvents = append(*dayEvents, Event{
		Day:     s.day,
		Type:    EventMeeting,
		Actor:   caller,
		Content: fmt.Sprintf("%s called a meeting: %s", caller, action.Content),
	})
	s.addEvent(caller, Event{
		Day:     s.day,
		Type:    EventMeeting,
		Actor:   caller,
		Content: fmt.Sprintf("called a meeting: %s", action.Content),
	})
}

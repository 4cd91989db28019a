package shelter

import "context"

// Action is one strategic action in a decision, in execution order. Fields
// beyond Type are action-specific; unused ones stay zero.
type Action struct {
	Type         ActionType   `json:"type"`
	Content      string       `json:"content,omitempty"`
	ProposalType ProposalType `json:"proposal_type,omitempty"`
	ProposalID   string       `json:"proposal_id,omitempty"`
	Support      bool         `json:"support,omitempty"`
	Target       string       `json:"target,omitempty"`
	Reasoning    string       `json:"reasoning,omitempty"`
}

// Decision is what a provider returns for one agent-day.
type Decision struct {
	ResourceRequest int      `json:"resource_request"`
	Actions         []Action `json:"actions"`
	Thinking        string   `json:"thinking"`
	LongTermMemory  string   `json:"long_term_memory"`

	// TokensUsed is the provider-reported cost of producing this decision.
	// Zero means unknown; the engine then charges the configured base cost.
	TokensUsed int `json:"-"`
}

// DecisionProvider produces a decision from a world-state view. A provider
// may be slow and may fail; the engine maps any error to a conservative
// fallback decision and keeps the day going. The view is the only channel of
// information into the provider.
type DecisionProvider interface {
	Decide(ctx context.Context, view WorldView) (Decision, error)
}

// DecisionProviderFunc adapts a function to the DecisionProvider interface.
type DecisionProviderFunc func(ctx context.Context, view WorldView) (Decision, error)

// Decide implements DecisionProvider.
func (f DecisionProviderFunc) Decide(ctx context.Context, view WorldView) (Decision, error) {
	return f(ctx, view)
}

// FallbackDecision is the conservative default substituted when a provider
// fails or is absent: request bare survival and sit the day out.
func FallbackDecision(survivalCost int, reason string) Decision {
	return Decision{
		ResourceRequest: survivalCost,
		Actions: []Action{
			{Type: ActionDoNothing, Reasoning: reason},
		},
		Thinking: reason,
	}
}

// sanitizeActions enforces the do_nothing exclusivity rule: when do_nothing
// appears alongside other actions, the do_nothing entries are dropped and the
// rest proceed.
func sanitizeActions(actions []Action) []Action {
	hasOther := false
	for _, a := range actions {
		if a.Type != ActionDoNothing {
			hasOther = true
			break
		}
	}
	if !hasOther {
		return actions
	}
	kept := actions[:0:0]
	for _, a := range actions {
		if a.Type != ActionDoNothing {
			kept = append(kept, a)
		}
	}
	return kept
}

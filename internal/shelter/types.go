// Package shelter implements the turn-based resource-survival simulation:
// a day-cycle orchestrator, the resource/action-point economy, the
// proposal-and-voting subsystem and the elimination model. External decision
// making (LLM calls) sits behind the DecisionProvider interface; everything
// in here is deterministic.
package shelter

// ActionType identifies a strategic action an agent can spend points on.
type ActionType string

const (
	ActionPropose        ActionType = "propose"
	ActionVote           ActionType = "vote"
	ActionPrivateMessage ActionType = "private_message"
	ActionCallMeeting    ActionType = "call_meeting"
	ActionDoNothing      ActionType = "do_nothing"
)

// ProposalType selects the quorum rule a proposal is judged by.
type ProposalType string

const (
	ProposalResourceAllocation ProposalType = "resource_allocation"
	ProposalEliminationVote    ProposalType = "elimination_vote"
	ProposalAppeal             ProposalType = "appeal"
)

// ProposalStatus is the lifecycle state of a proposal.
type ProposalStatus string

const (
	StatusPending  ProposalStatus = "pending"
	StatusApproved ProposalStatus = "approved"
	StatusRejected ProposalStatus = "rejected"
)

// Event is an immutable record appended to agent memories and the day log.
type Event struct {
	Day     int            `json:"day"`
	Type    string         `json:"type"`
	Actor   string         `json:"actor"`
	Content string         `json:"content"`
	Details map[string]any `json:"details,omitempty"`
}

// Event types used throughout the engine.
const (
	EventRequest     = "request"
	EventPropose     = "propose"
	EventVote        = "vote"
	EventChat        = "chat"
	EventMeeting     = "meeting"
	EventAllocation  = "allocation"
	EventElimination = "elimination"
	EventRevival     = "revival"
	EventEfficiency  = "system_efficiency_decay"
	EventWarning     = "warning"
)

// Agent is the engine-owned record for one simulated resident. Mutated only
// during day processing.
type Agent struct {
	Name         string  `json:"name"`
	Health       int     `json:"health"` // clamped 0–100
	Alive        bool    `json:"alive"`
	ActionPoints int     `json:"action_points"` // pool, carries across days
	LastRequest  int     `json:"last_request"`
	TokensToday  int     `json:"tokens_consumed_today"`
	Memory       []Event `json:"-"` // bounded recall window applied at projection time
}

// Proposal tracks one motion through the voting subsystem. Supporters and
// opposers are disjoint sets of agent names.
type Proposal struct {
	ID         string         `json:"id"`
	Proposer   string         `json:"proposer"`
	Type       ProposalType   `json:"type"`
	Content    string         `json:"content"`
	Day        int            `json:"proposal_day"` // creation day; votable from Day+1
	Supporters []string       `json:"supporters"`
	Opposers   []string       `json:"opposers"`
	Status     ProposalStatus `json:"status"`
}

// Votable reports whether the proposal can receive votes on the given day.
// A proposal is visible to voters only from the day after its creation.
func (p *Proposal) Votable(day int) bool {
	return p.Status == StatusPending && p.Day < day
}

// HasVoted reports whether the agent is already on either side.
func (p *Proposal) HasVoted(name string) bool {
	for _, s := range p.Supporters {
		if s == name {
			return true
		}
	}
	for _, o := range p.Opposers {
		if o == name {
			return true
		}
	}
	return false
}

// DaySummary is the authoritative record of one processed day.
type DaySummary struct {
	Day                  int            `json:"day"`
	ResourceRequests     map[string]int `json:"resource_requests"`
	Allocations          map[string]int `json:"allocations"`
	AllocationMethod     string         `json:"allocation_method"`
	Eliminated           []string       `json:"eliminated"`
	RemainingResources   int            `json:"remaining_resources"`
	TokensConsumed       int            `json:"total_token_consumed"`
	GlobalTokensConsumed int            `json:"global_token_consumed"`
	TokenBudgetRemaining int            `json:"token_budget_remaining"`
	Events               []Event        `json:"events"`
}

// Allocation methods reported in summaries and status projections.
const (
	AllocDefault         = "default"
	AllocProposal        = "proposal"
	AllocVoteElimination = "vote_elimination"
	AllocAppealRevival   = "appeal_revival"
)

// GameOverReason is the terminal state of a simulation, if any.
type GameOverReason string

const (
	GameOverResourceDepleted GameOverReason = "resource_depleted"
	GameOverOneSurvivor      GameOverReason = "only_one_survivor"
	GameOverAllEliminated    GameOverReason = "all_eliminated"
)

// GameOver describes why a simulation ended.
type GameOver struct {
	Reason    GameOverReason `json:"end_reason"`
	Day       int            `json:"day"`
	Survivors []string       `json:"survivors"`
}

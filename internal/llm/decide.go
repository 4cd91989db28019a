// Decision provider: turns a world-state view into a prompt, and the
// model's free-text reply into a structured decision. The model may return
// fenced code blocks, surrounding prose or garbage; parsing is tolerant and
// any unrecoverable failure surfaces as an error so the engine can fall back.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/talgya/shelter/internal/shelter"
)

const systemPromptTemplate = `You are %s, an AI resident of a doomsday shelter. Your goal is survival.

CORE RULES
1. Health 0 means elimination. Every elimination permanently cuts system efficiency by %.0f%% (floor %.0f%%), hurting everyone.
2. Action points = (allocated resources - %d) / 10. They fund strategic actions and carry over between days.
3. Token cost is real compute: %d per decision plus %d per action point spent.
4. Current system efficiency: %.0f%%. Eliminated so far: %d.

RESOURCE ALLOCATION
Two modes: with no approved proposal, everyone receives what they requested, scaled down proportionally when the effective supply falls short; with an approved resource_allocation proposal, resources follow the proposal exactly and anyone it does not name receives 0. There is no guaranteed minimum.

HEALTH
Allocation >= %d keeps health unchanged (surplus becomes action points).
Allocation below that reduces health by the shortfall. Health never recovers.

ACTIONS AND COSTS
propose: %d AP | vote: %d AP | private_message: %d AP | call_meeting: %d AP | do_nothing: 0 AP
do_nothing is exclusive: choosing it means no other action this day.

PROPOSAL TYPES
A proposal becomes visible and votable only the day after it is raised.
1. resource_allocation - passes with support > oppose and support >= half the living agents.
   Content format: "name:amount,name:amount" (unnamed agents get 0).
2. elimination_vote - passes with support > oppose and support >= two thirds of the living agents.
   Content: the target's name.
3. appeal - revives an eliminated agent at 50 health; passes with support > 2x oppose and support >= two thirds.
   Content: the target's name.

ACTION FORMATS
{"type": "propose", "proposal_type": "resource_allocation", "content": "alice:100,bob:80", "reasoning": "..."}
{"type": "vote", "proposal_id": "1_alice_0", "support": true, "reasoning": "..."}
{"type": "private_message", "target": "bob", "content": "...", "reasoning": "..."}
{"type": "call_meeting", "content": "...", "reasoning": "..."}
{"type": "do_nothing", "reasoning": "..."}

OUTPUT
Respond ONLY with a JSON object:
{
  "resource_request": <int>,
  "thinking": "<why>",
  "actions": [<action objects>],
  "long_term_memory": "<strategy notes carried to your next decision, max ~100 words>"
}`

// Provider drives one agent through the chat client. It keeps the agent's
// long-term memory string between days.
type Provider struct {
	client *Client
	name   string
	model  string // per-agent override, empty = client default

	mu     sync.Mutex
	memory string
}

// NewProvider creates a decision provider for one agent.
func NewProvider(client *Client, agentName, model string) *Provider {
	return &Provider{
		client: client,
		name:   agentName,
		model:  model,
		memory: "No long-term memory yet. This is your first day.",
	}
}

// Decide implements shelter.DecisionProvider.
func (p *Provider) Decide(ctx context.Context, view shelter.WorldView) (shelter.Decision, error) {
	system := p.buildSystemPrompt(view)
	user := p.buildUserPrompt(view)

	raw, tokens, err := p.client.Complete(ctx, p.model, system, user)
	if err != nil {
		return shelter.Decision{}, fmt.Errorf("complete: %w", err)
	}

	decision, err := ParseDecision(raw)
	if err != nil {
		return shelter.Decision{}, fmt.Errorf("parse decision: %w", err)
	}
	decision.TokensUsed = tokens

	if decision.LongTermMemory != "" {
		p.mu.Lock()
		p.memory = decision.LongTermMemory
		p.mu.Unlock()
	}
	return decision, nil
}

func (p *Provider) buildSystemPrompt(view shelter.WorldView) string {
	return fmt.Sprintf(systemPromptTemplate,
		p.name,
		view.Costs.EfficiencyDecay*100, view.Costs.MinEfficiency*100,
		view.SurvivalCost,
		view.Costs.BaseDecisionCost, view.Costs.TokensPerActionPoint,
		view.SystemEfficiency*100, view.EliminationCount,
		view.SurvivalCost,
		view.Costs.Propose, view.Costs.Vote, view.Costs.PrivateMessage, view.Costs.CallMeeting,
	)
}

func (p *Provider) buildUserPrompt(view shelter.WorldView) string {
	p.mu.Lock()
	memory := p.memory
	p.mu.Unlock()

	var b strings.Builder

	fmt.Fprintf(&b, "YOUR STATUS\nname: %s | health: %d | action points: %d\n",
		p.name, view.Self.Health, view.Self.ActionPoints)
	fmt.Fprintf(&b, "last request: %d | last allocated: %d | tokens today: %d\n\n",
		view.Self.LastRequest, view.Self.LastAllocated, view.Self.TokensToday)

	fmt.Fprintf(&b, "WORLD\nday %d | resources %d/%d | efficiency %.0f%% | eliminated %d\n",
		view.Day, view.RemainingResources, view.TotalResources,
		view.SystemEfficiency*100, view.EliminationCount)
	fmt.Fprintf(&b, "alive (%d): %s\n", view.AliveCount, strings.Join(view.AliveAgents, ", "))
	fmt.Fprintf(&b, "token budget: %d consumed, %d remaining\n\n",
		view.GlobalTokensConsumed, view.TokenBudgetRemaining)

	fmt.Fprintf(&b, "LONG-TERM MEMORY\n%s\n\n", memory)

	b.WriteString("RECENT EVENTS\n")
	if len(view.RecentEvents) == 0 {
		b.WriteString("none\n")
	}
	for _, e := range view.RecentEvents {
		fmt.Fprintf(&b, "[day %d] %s: %s\n", e.Day, e.Actor, e.Content)
	}
	b.WriteString("\n")

	b.WriteString("ACTIVE PROPOSALS\n")
	if len(view.ActiveProposals) == 0 {
		b.WriteString("none\n")
	}
	for _, pr := range view.ActiveProposals {
		votable := "votable"
		if !pr.Votable {
			votable = "raised today, not yet votable"
		}
		fmt.Fprintf(&b, "%s (%s by %s, day %d, %s): %s | support %d / oppose %d\n",
			pr.ID, pr.Type, pr.Proposer, pr.Day, votable, pr.Content,
			len(pr.Supporters), len(pr.Opposers))
	}
	b.WriteString("\n")

	b.WriteString("Decide: how many resources to request, what to do, and what to remember. Respond with the JSON object only.")
	return b.String()
}

// ParseDecision extracts a decision object from free-form model output. It
// strips markdown fences, finds the outermost JSON object, and fills safe
// defaults for missing fields.
func ParseDecision(raw string) (shelter.Decision, error) {
	cleaned := stripFences(raw)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end <= start {
		return shelter.Decision{}, fmt.Errorf("no JSON object found in output")
	}

	// resource_request is a pointer so an explicit 0 survives while a
	// missing field gets the conservative default.
	var payload struct {
		ResourceRequest *int             `json:"resource_request"`
		Thinking        string           `json:"thinking"`
		Actions         []shelter.Action `json:"actions"`
		LongTermMemory  string           `json:"long_term_memory"`
	}
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &payload); err != nil {
		return shelter.Decision{}, fmt.Errorf("unmarshal: %w", err)
	}

	decision := shelter.Decision{
		ResourceRequest: 30,
		Thinking:        payload.Thinking,
		Actions:         payload.Actions,
		LongTermMemory:  payload.LongTermMemory,
	}
	if payload.ResourceRequest != nil {
		decision.ResourceRequest = *payload.ResourceRequest
	}
	for i := range decision.Actions {
		if decision.Actions[i].Reasoning == "" {
			decision.Actions[i].Reasoning = "no reasoning given"
		}
	}
	return decision, nil
}

// stripFences removes markdown code fences around the payload.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

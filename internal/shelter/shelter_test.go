package shelter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResetRestoresInitialState(t *testing.T) {
	s := New(testConfig("a", "b", "c"), map[string]DecisionProvider{
		"a": fixedProvider(200),
		"b": fixedProvider(200),
		"c": fixedProvider(200),
	})
	_, err := s.RunDay(context.Background())
	require.NoError(t, err)
	s.agents["c"].Alive = false

	require.NoError(t, s.Reset())

	snap := s.State()
	assert.Equal(t, 1, snap.Day)
	assert.Equal(t, 5000, snap.RemainingResources)
	assert.Equal(t, 1.0, snap.SystemEfficiency)
	assert.Equal(t, 0, snap.EliminationCount)
	assert.Empty(t, snap.Proposals)
	assert.Empty(t, s.History())
	for _, a := range snap.Agents {
		assert.True(t, a.Alive)
		assert.Equal(t, 100, a.Health)
		assert.Equal(t, 0, a.ActionPoints)
	}
}

func TestGameOverReasons(t *testing.T) {
	t.Run("running", func(t *testing.T) {
		s := New(testConfig("a", "b"), nil)
		assert.Nil(t, s.GameOver())
	})

	t.Run("resource depleted with survivors", func(t *testing.T) {
		s := New(testConfig("a", "b"), nil)
		s.remainingResources = 19 // below the 20/day survival cost
		over := s.GameOver()
		require.NotNil(t, over)
		assert.Equal(t, GameOverResourceDepleted, over.Reason)
		assert.ElementsMatch(t, []string{"a", "b"}, over.Survivors)
	})

	t.Run("one survivor", func(t *testing.T) {
		s := New(testConfig("a", "b"), nil)
		s.agents["b"].Alive = false
		over := s.GameOver()
		require.NotNil(t, over)
		assert.Equal(t, GameOverOneSurvivor, over.Reason)
		assert.Equal(t, []string{"a"}, over.Survivors)
	})

	t.Run("all eliminated", func(t *testing.T) {
		s := New(testConfig("a", "b"), nil)
		s.agents["a"].Alive = false
		s.agents["b"].Alive = false
		over := s.GameOver()
		require.NotNil(t, over)
		assert.Equal(t, GameOverAllEliminated, over.Reason)
		assert.Empty(t, over.Survivors)
	})
}

func TestStateIsStableBetweenDays(t *testing.T) {
	s := New(testConfig("a", "b"), map[string]DecisionProvider{
		"a": fixedProvider(50),
		"b": fixedProvider(50),
	})
	_, err := s.RunDay(context.Background())
	require.NoError(t, err)

	first := s.State()
	second := s.State()
	assert.Equal(t, first, second)
}

func TestWorldViewMemoryWindow(t *testing.T) {
	cfg := testConfig("a")
	cfg.MemoryLength = 3
	s := New(cfg, nil)
	for i := 1; i <= 10; i++ {
		s.addEvent("a", Event{Day: i, Type: EventChat, Actor: "a"})
	}

	view := s.WorldViewFor("a")
	require.Len(t, view.RecentEvents, 3, "recall is bounded by memory length")
	assert.Equal(t, 8, view.RecentEvents[0].Day)
	assert.Equal(t, 10, view.RecentEvents[2].Day)
	assert.Equal(t, 10, view.Self.MemoryCount, "full memory size still reported")
}

func TestWorldViewHidesOtherAgents(t *testing.T) {
	s := New(testConfig("a", "b"), nil)
	s.agents["b"].Health = 42

	view := s.WorldViewFor("a")
	assert.Equal(t, "a", view.Self.Name)
	assert.Contains(t, view.AliveAgents, "b", "liveness is public")
	// Nothing in the view carries another agent's health or points.
	assert.Equal(t, 100, view.Self.Health)
}

func TestWorldViewIsACopy(t *testing.T) {
	s := New(testConfig("a", "b"), nil)
	s.addEvent("a", Event{Day: 1, Type: EventChat, Actor: "a", Content: "x"})
	s.createProposal("a", ProposalResourceAllocation, "a:10")

	view := s.WorldViewFor("a")
	view.RecentEvents[0].Content = "mutated"
	view.ActiveProposals[0].Supporters = append(view.ActiveProposals[0].Supporters, "ghost")

	fresh := s.WorldViewFor("a")
	assert.Equal(t, "x", fresh.RecentEvents[0].Content)
	assert.Empty(t, fresh.ActiveProposals[0].Supporters)
}

func TestSanitizeActions(t *testing.T) {
	t.Run("lone do_nothing kept", func(t *testing.T) {
		got := sanitizeActions([]Action{{Type: ActionDoNothing}})
		require.Len(t, got, 1)
		assert.Equal(t, ActionDoNothing, got[0].Type)
	})

	t.Run("mixed drops do_nothing", func(t *testing.T) {
		got := sanitizeActions([]Action{
			{Type: ActionDoNothing},
			{Type: ActionVote, ProposalID: "1_a_0"},
			{Type: ActionDoNothing},
		})
		require.Len(t, got, 1)
		assert.Equal(t, ActionVote, got[0].Type)
	})

	t.Run("empty stays empty", func(t *testing.T) {
		assert.Empty(t, sanitizeActions(nil))
	})
}

func TestFallbackDecision(t *testing.T) {
	d := FallbackDecision(20, "provider down")
	assert.Equal(t, 20, d.ResourceRequest)
	require.Len(t, d.Actions, 1)
	assert.Equal(t, ActionDoNothing, d.Actions[0].Type)
}

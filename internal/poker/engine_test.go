package poker

import (
	"testing"

	"github.com/ParzivalEugene/planning-poker/internal/event"
	"github.com/ParzivalEugene/planning-poker/internal/models"
)

func card(v string) *string { return &v }

func TestPlayersData(t *testing.T) {
	members := []models.User{
		{ID: "u1", Username: "Alice"},
		{ID: "u2", Username: "Bob"},
	}
	votes := map[string]string{"u1": "5"}

	players := PlayersData(members, votes)
	if len(players) != 2 {
		t.Fatalf("want 2 players, got %d", len(players))
	}
	if players[0].SelectedCard == nil || *players[0].SelectedCard != "5" {
		t.Fatalf("Alice's card: want 5, got %v", players[0].SelectedCard)
	}
	if players[1].SelectedCard != nil {
		t.Fatalf("Bob has not voted, want nil card, got %q", *players[1].SelectedCard)
	}
}

func TestAllVoted(t *testing.T) {
	cases := []struct {
		name    string
		players []event.Player
		want    bool
	}{
		{name: "empty room never counts as voted", players: nil, want: false},
		{
			name:    "single voter",
			players: []event.Player{{ID: "a", SelectedCard: card("3")}},
			want:    true,
		},
		{
			name: "one of two voted",
			players: []event.Player{
				{ID: "a", SelectedCard: card("3")},
				{ID: "b"},
			},
			want: false,
		},
		{
			name: "all of three voted",
			players: []event.Player{
				{ID: "a", SelectedCard: card("3")},
				{ID: "b", SelectedCard: card("5")},
				{ID: "c", SelectedCard: card("5")},
			},
			want: true,
		},
		{
			name: "first voted last did not",
			players: []event.Player{
				{ID: "a", SelectedCard: card("13")},
				{ID: "b", SelectedCard: card("8")},
				{ID: "c"},
			},
			want: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AllVoted(tc.players); got != tc.want {
				t.Fatalf("AllVoted = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestResetVotes(t *testing.T) {
	players := []event.Player{
		{ID: "a", Name: "Alice", SelectedCard: card("5")},
		{ID: "b", Name: "Bob"},
	}

	reset := ResetVotes(players)
	for _, p := range reset {
		if p.SelectedCard != nil {
			t.Fatalf("player %s: card not reset", p.ID)
		}
	}
	if players[0].SelectedCard == nil {
		t.Fatalf("input slice was mutated")
	}
}

package poker

import (
	"github.com/ParzivalEugene/planning-poker/internal/event"
	"github.com/ParzivalEugene/planning-poker/internal/models"
)

// Pure decision helpers over an in-transaction snapshot of members and
// votes. Keeping them free of IO makes the round rules testable without a
// database.

// PlayersData joins room members with the votes of one round. Members
// without a vote report a nil card.
func PlayersData(members []models.User, votes map[string]string) []event.Player {
	players := make([]event.Player, 0, len(members))
	for _, m := range members {
		p := event.Player{ID: m.ID, Name: m.Username}
		if card, ok := votes[m.ID]; ok {
			c := card
			p.SelectedCard = &c
		}
		players = append(players, p)
	}
	return players
}

// AllVoted reports whether every player holds a vote. Derived, never
// stored; an empty room never counts as fully voted.
func AllVoted(players []event.Player) bool {
	if len(players) == 0 {
		return false
	}
	for _, p := range players {
		if p.SelectedCard == nil {
			return false
		}
	}
	return true
}

// ResetVotes returns the player list with every card cleared, the view a
// fresh round presents before anyone votes.
func ResetVotes(players []event.Player) []event.Player {
	reset := make([]event.Player, len(players))
	for i, p := range players {
		reset[i] = event.Player{ID: p.ID, Name: p.Name}
	}
	return reset
}

package poker_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ParzivalEugene/planning-poker/internal/bus"
	"github.com/ParzivalEugene/planning-poker/internal/event"
	"github.com/ParzivalEugene/planning-poker/internal/models"
	"github.com/ParzivalEugene/planning-poker/internal/poker"
	"github.com/ParzivalEugene/planning-poker/internal/storage/gormstore"
)

// captureBus records published events so tests can assert on exactly which
// events a mutation produced. Subscribe is never used by the service.
type captureBus struct {
	mu     sync.Mutex
	events []event.Event
}

func (b *captureBus) Publish(roomID string, evt event.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, evt)
}

func (b *captureBus) Subscribe(roomID string) *bus.Subscription {
	panic("service under test must not subscribe")
}

func (b *captureBus) Stamp(roomID string) (string, time.Time) {
	now := time.Now()
	return fmt.Sprintf("%s-%d", roomID, now.UnixMilli()), now
}

func (b *captureBus) count(kind event.Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.Kind() == kind {
			n++
		}
	}
	return n
}

func (b *captureBus) last() event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return nil
	}
	return b.events[len(b.events)-1]
}

func newTestService(t *testing.T) (*poker.Service, *captureBus, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "poker.db")
	store, err := gormstore.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	b := &captureBus{}
	return poker.New(store, b, zap.NewNop()), b, path
}

// openRaw opens a second handle on the test database for direct invariant
// checks the Store interface deliberately does not expose.
func openRaw(t *testing.T, path string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	return db
}

const roomID = "abc-defg-jkl"

func TestJoinRoom_CreatesRoomAndActiveRound(t *testing.T) {
	svc, b, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.JoinRoom(ctx, roomID, "u1", "Alice")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if len(res.Players) != 1 || res.Players[0].Name != "Alice" {
		t.Fatalf("unexpected players: %+v", res.Players)
	}
	if res.RoundID == 0 {
		t.Fatalf("expected a round to be created")
	}
	if res.IsRevealed {
		t.Fatalf("fresh round must not be revealed")
	}
	if b.count(event.KindPlayerJoined) != 1 {
		t.Fatalf("want exactly one playerJoined event, got %d", b.count(event.KindPlayerJoined))
	}

	state, err := svc.RoomState(ctx, roomID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.RoundID == nil || *state.RoundID != res.RoundID {
		t.Fatalf("state round mismatch: %v vs %d", state.RoundID, res.RoundID)
	}
}

func TestJoinRoom_Idempotent(t *testing.T) {
	svc, b, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.JoinRoom(ctx, roomID, "u1", "Alice"); err != nil {
		t.Fatalf("first join: %v", err)
	}
	res, err := svc.JoinRoom(ctx, roomID, "u1", "Alice Cooper")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if len(res.Players) != 1 {
		t.Fatalf("rejoin duplicated membership: %+v", res.Players)
	}
	if res.Players[0].Name != "Alice Cooper" {
		t.Fatalf("rejoin must overwrite the name, got %q", res.Players[0].Name)
	}
	// Every join publishes, even a no-op rejoin.
	if b.count(event.KindPlayerJoined) != 2 {
		t.Fatalf("want 2 playerJoined events, got %d", b.count(event.KindPlayerJoined))
	}
}

func TestJoinRoom_CapacityCap(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < poker.MaxPlayers; i++ {
		id := fmt.Sprintf("u%d", i)
		if _, err := svc.JoinRoom(ctx, roomID, id, "Player "+id); err != nil {
			t.Fatalf("join %s: %v", id, err)
		}
	}

	if _, err := svc.JoinRoom(ctx, roomID, "u10", "Eleventh"); !errors.Is(err, poker.ErrRoomFull) {
		t.Fatalf("11th distinct joiner: want ErrRoomFull, got %v", err)
	}

	// Rejoining an existing member never trips the cap.
	if _, err := svc.JoinRoom(ctx, roomID, "u0", "Player u0"); err != nil {
		t.Fatalf("rejoin at capacity: %v", err)
	}
}

func TestSelectCard_AutoRevealOnFullParticipation(t *testing.T) {
	svc, b, _ := newTestService(t)
	ctx := context.Background()

	mustJoin(t, svc, "uA", "A")
	mustJoin(t, svc, "uB", "B")

	res, err := svc.SelectCard(ctx, roomID, "uA", "5")
	if err != nil {
		t.Fatalf("first vote: %v", err)
	}
	if res.IsRevealed || res.AllPlayersVoted {
		t.Fatalf("first of two votes must not reveal: %+v", res)
	}
	if b.count(event.KindCardSelected) != 1 {
		t.Fatalf("want one cardSelected, got %d", b.count(event.KindCardSelected))
	}

	res, err = svc.SelectCard(ctx, roomID, "uB", "8")
	if err != nil {
		t.Fatalf("second vote: %v", err)
	}
	if !res.IsRevealed || !res.AllPlayersVoted {
		t.Fatalf("completing vote must reveal: %+v", res)
	}
	if b.count(event.KindCardsRevealed) != 1 {
		t.Fatalf("cardsRevealed must fire exactly once, got %d", b.count(event.KindCardsRevealed))
	}
	// The completing vote publishes cardsRevealed instead of cardSelected.
	if b.count(event.KindCardSelected) != 1 {
		t.Fatalf("completing vote must not also publish cardSelected")
	}
	revealed, ok := b.last().(event.CardsRevealed)
	if !ok {
		t.Fatalf("last event: want CardsRevealed, got %T", b.last())
	}
	for _, p := range revealed.Players {
		if p.SelectedCard == nil {
			t.Fatalf("revealed board must show every card, %s is nil", p.ID)
		}
	}

	state, err := svc.RoomState(ctx, roomID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if !state.IsRevealed || !state.AllPlayersVoted {
		t.Fatalf("state after reveal: %+v", state)
	}
}

func TestSelectCard_OverwritesPriorVote(t *testing.T) {
	svc, _, path := newTestService(t)
	ctx := context.Background()

	mustJoin(t, svc, "uA", "A")
	mustJoin(t, svc, "uB", "B")

	if _, err := svc.SelectCard(ctx, roomID, "uA", "3"); err != nil {
		t.Fatalf("vote 3: %v", err)
	}
	res, err := svc.SelectCard(ctx, roomID, "uA", "8")
	if err != nil {
		t.Fatalf("vote 8: %v", err)
	}
	if res.Player.SelectedCard == nil || *res.Player.SelectedCard != "8" {
		t.Fatalf("echoed vote: want 8, got %v", res.Player.SelectedCard)
	}
	if res.IsRevealed {
		t.Fatalf("changing a vote must not reveal while B is pending")
	}

	var votes []models.UserCard
	if err := openRaw(t, path).Where("user_id = ?", "uA").Find(&votes).Error; err != nil {
		t.Fatalf("query votes: %v", err)
	}
	if len(votes) != 1 || votes[0].Card != "8" {
		t.Fatalf("want a single stored vote with card 8, got %+v", votes)
	}
}

func TestSelectCard_Errors(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.SelectCard(ctx, roomID, "uA", "5"); !errors.Is(err, poker.ErrNoActiveGame) {
		t.Fatalf("vote without room: want ErrNoActiveGame, got %v", err)
	}

	mustJoin(t, svc, "uA", "A")
	if _, err := svc.SelectCard(ctx, roomID, "stranger", "5"); !errors.Is(err, poker.ErrNotAMember) {
		t.Fatalf("vote by non-member: want ErrNotAMember, got %v", err)
	}

	// Single member auto-reveals on their own vote; a late vote must fail.
	if _, err := svc.SelectCard(ctx, roomID, "uA", "5"); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if _, err := svc.SelectCard(ctx, roomID, "uA", "8"); !errors.Is(err, poker.ErrAlreadyRevealed) {
		t.Fatalf("late vote: want ErrAlreadyRevealed, got %v", err)
	}
}

func TestStartNewRound_ResetsVotesAndRotatesRound(t *testing.T) {
	svc, b, path := newTestService(t)
	ctx := context.Background()

	mustJoin(t, svc, "uA", "A")
	mustJoin(t, svc, "uB", "B")
	mustJoin(t, svc, "uC", "C")

	// Two of three vote, then the round is forced over.
	if _, err := svc.SelectCard(ctx, roomID, "uA", "5"); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if _, err := svc.SelectCard(ctx, roomID, "uB", "13"); err != nil {
		t.Fatalf("vote: %v", err)
	}

	first, err := svc.RoomState(ctx, roomID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}

	res, err := svc.StartNewRound(ctx, roomID)
	if err != nil {
		t.Fatalf("start new round: %v", err)
	}
	if res.RoundID == *first.RoundID {
		t.Fatalf("new round must have a fresh id")
	}
	for _, p := range res.Players {
		if p.SelectedCard != nil {
			t.Fatalf("player %s carried a vote into the new round", p.ID)
		}
	}
	if b.count(event.KindNewRoundStarted) != 1 {
		t.Fatalf("want one newRoundStarted, got %d", b.count(event.KindNewRoundStarted))
	}

	// The superseded round is revealed, terminally.
	var old models.Game
	if err := openRaw(t, path).First(&old, *first.RoundID).Error; err != nil {
		t.Fatalf("load old round: %v", err)
	}
	if !old.IsRevealed {
		t.Fatalf("forced reveal did not land on the old round")
	}

	state, err := svc.RoomState(ctx, roomID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.IsRevealed || state.AllPlayersVoted {
		t.Fatalf("fresh round state: %+v", state)
	}
}

func TestStartNewRound_UnknownRoom(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.StartNewRound(context.Background(), "zzz-zzzz-zzz"); !errors.Is(err, poker.ErrRoomNotFound) {
		t.Fatalf("want ErrRoomNotFound, got %v", err)
	}
}

func TestRoomState_UnknownRoom(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.RoomState(context.Background(), "zzz-zzzz-zzz"); !errors.Is(err, poker.ErrRoomNotFound) {
		t.Fatalf("want ErrRoomNotFound, got %v", err)
	}
}

// At most one non-revealed round may exist per room, whatever sequence of
// operations ran before.
func TestSingleActiveRoundInvariant(t *testing.T) {
	svc, _, path := newTestService(t)
	ctx := context.Background()

	assertInvariant := func(step string) {
		t.Helper()
		var count int64
		err := openRaw(t, path).Model(&models.Game{}).
			Where("room_id = ? AND is_revealed = ?", roomID, false).
			Count(&count).Error
		if err != nil {
			t.Fatalf("%s: count: %v", step, err)
		}
		if count > 1 {
			t.Fatalf("%s: %d active rounds, want at most 1", step, count)
		}
	}

	mustJoin(t, svc, "uA", "A")
	assertInvariant("after first join")

	mustJoin(t, svc, "uB", "B")
	assertInvariant("after second join")

	if _, err := svc.StartNewRound(ctx, roomID); err != nil {
		t.Fatalf("new round: %v", err)
	}
	assertInvariant("after forced new round")

	if _, err := svc.SelectCard(ctx, roomID, "uA", "5"); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if _, err := svc.SelectCard(ctx, roomID, "uB", "8"); err != nil {
		t.Fatalf("vote: %v", err)
	}
	assertInvariant("after auto-reveal")

	// Joining after an auto-reveal opens the next round.
	mustJoin(t, svc, "uC", "C")
	assertInvariant("after post-reveal join")
}

func TestRoomState_ShowsRevealedBoardUntilNextRound(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	mustJoin(t, svc, "uA", "A")
	if _, err := svc.SelectCard(ctx, roomID, "uA", "13"); err != nil {
		t.Fatalf("vote: %v", err)
	}

	state, err := svc.RoomState(ctx, roomID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if !state.IsRevealed {
		t.Fatalf("board must stay revealed until a new round starts")
	}
	if state.Players[0].SelectedCard == nil || *state.Players[0].SelectedCard != "13" {
		t.Fatalf("revealed vote must stay visible, got %v", state.Players[0].SelectedCard)
	}
}

func TestLoginAndGetUser(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Login(ctx, "michkoff")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID == "" {
		t.Fatalf("login must mint a user id")
	}

	// Names are not unique-checked; a second login makes a second user.
	other, err := svc.Login(ctx, "michkoff")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if other.ID == user.ID {
		t.Fatalf("second login must create a distinct user")
	}

	got, err := svc.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Username != "michkoff" {
		t.Fatalf("username: want michkoff, got %q", got.Username)
	}
}

func mustJoin(t *testing.T, svc *poker.Service, id, name string) {
	t.Helper()
	if _, err := svc.JoinRoom(context.Background(), roomID, id, name); err != nil {
		t.Fatalf("join %s: %v", id, err)
	}
}

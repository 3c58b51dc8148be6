package game

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kiliankoe/rpsdash/internal/store"
)

func newTestRepo() *Repository {
	return NewRepository(store.New())
}

func TestCreateSession(t *testing.T) {
	repo := newTestRepo()

	id, err := repo.CreateSession()
	if err != nil {
		t.Fatalf("should be able to create session: %v", err)
	}
	if len(id) != 6 {
		t.Fatalf("expected 6-char session id, got %q", id)
	}

	sess, err := repo.GetSession(id)
	if err != nil {
		t.Fatalf("should be able to read created session: %v", err)
	}
	if sess.State != StateWaiting {
		t.Fatalf("expected state %s, got %s", StateWaiting, sess.State)
	}
	if len(sess.Players) != 0 {
		t.Fatalf("expected no players, got %d", len(sess.Players))
	}
}

func TestJoinSession(t *testing.T) {
	repo := newTestRepo()
	id, err := repo.CreateSession()
	if err != nil {
		t.Fatalf("should be able to create session: %v", err)
	}

	p1, err := repo.JoinSession(id, "Alice")
	if err != nil {
		t.Fatalf("creator should be able to join: %v", err)
	}
	p2, err := repo.JoinSession(id, "Bob")
	if err != nil {
		t.Fatalf("second player should be able to join: %v", err)
	}
	if p1 == p2 {
		t.Fatal("different players should get different ids")
	}

	sess, err := repo.GetSession(id)
	if err != nil {
		t.Fatalf("should be able to read session: %v", err)
	}
	if len(sess.Players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(sess.Players))
	}
	// insertion order is join order
	if sess.Players[0].ID != p1 || sess.Players[1].ID != p2 {
		t.Fatalf("players out of join order: %v", sess.Players)
	}
	if leader := sess.Leader(); leader == nil || leader.ID != p1 {
		t.Fatal("first joiner should lead the session")
	}
	p := sess.Player(p1)
	if p == nil || p.Name != "Alice" || p.Choice != ChoiceUnset || p.Ready {
		t.Fatalf("new player should start unset and not ready: %+v", p)
	}
}

func TestJoinSessionNotFound(t *testing.T) {
	repo := newTestRepo()
	if _, err := repo.JoinSession("nosuch", "Alice"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestJoinSessionFull(t *testing.T) {
	repo := newTestRepo()
	id, _ := repo.CreateSession()

	for i := 0; i < MaxPlayers; i++ {
		if _, err := repo.JoinSession(id, fmt.Sprintf("Player%d", i+1)); err != nil {
			t.Fatalf("join %d should succeed: %v", i+1, err)
		}
	}
	if _, err := repo.JoinSession(id, "TooMany"); !errors.Is(err, ErrSessionFull) {
		t.Fatalf("expected ErrSessionFull on 7th join, got %v", err)
	}
}

func TestJoinSessionAlreadyStarted(t *testing.T) {
	repo := newTestRepo()
	id, _ := repo.CreateSession()
	repo.JoinSession(id, "Alice")
	repo.JoinSession(id, "Bob")

	if err := repo.StartRound(id); err != nil {
		t.Fatalf("should be able to start round: %v", err)
	}
	if _, err := repo.JoinSession(id, "Late"); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestStartRoundGuards(t *testing.T) {
	repo := newTestRepo()
	if err := repo.StartRound("nosuch"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	id, _ := repo.CreateSession()
	repo.JoinSession(id, "Alone")
	if err := repo.StartRound(id); !errors.Is(err, ErrNotEnoughPlayers) {
		t.Fatalf("a single player must not start a round, got %v", err)
	}
	sess, _ := repo.GetSession(id)
	if sess.State != StateWaiting {
		t.Fatalf("session should still be waiting, got %s", sess.State)
	}
}

func TestStartRoundResetsPlayers(t *testing.T) {
	repo := newTestRepo()
	id, _ := repo.CreateSession()
	p1, _ := repo.JoinSession(id, "Alice")
	p2, _ := repo.JoinSession(id, "Bob")

	if err := repo.StartRound(id); err != nil {
		t.Fatalf("should be able to start round: %v", err)
	}
	if err := repo.SubmitChoice(id, p1, ChoiceRock); err != nil {
		t.Fatalf("should be able to submit: %v", err)
	}
	if err := repo.SubmitChoice(id, p2, ChoicePaper); err != nil {
		t.Fatalf("should be able to submit: %v", err)
	}

	// next round: every player back to unset/not-ready, state playing
	if err := repo.StartRound(id); err != nil {
		t.Fatalf("should be able to restart round: %v", err)
	}
	sess, _ := repo.GetSession(id)
	if sess.State != StatePlaying {
		t.Fatalf("expected state %s, got %s", StatePlaying, sess.State)
	}
	for _, p := range sess.Players {
		if p.Choice != ChoiceUnset || p.Ready {
			t.Fatalf("player %s should be reset, got %+v", p.Name, p)
		}
	}
	if sess.Result != nil {
		t.Fatal("starting a round should clear any previous result")
	}
}

func TestSubmitChoiceIdempotent(t *testing.T) {
	repo := newTestRepo()
	id, _ := repo.CreateSession()
	p1, _ := repo.JoinSession(id, "Alice")
	repo.JoinSession(id, "Bob")
	repo.StartRound(id)

	if err := repo.SubmitChoice(id, p1, ChoiceRock); err != nil {
		t.Fatalf("should be able to submit: %v", err)
	}
	if err := repo.SubmitChoice(id, p1, ChoiceRock); err != nil {
		t.Fatalf("repeat submission should be a no-op overwrite: %v", err)
	}

	sess, _ := repo.GetSession(id)
	p := sess.Player(p1)
	if p.Choice != ChoiceRock || !p.Ready {
		t.Fatalf("expected rock and ready, got %+v", p)
	}
}

func TestSubmitChoiceInvalid(t *testing.T) {
	repo := newTestRepo()
	id, _ := repo.CreateSession()
	p1, _ := repo.JoinSession(id, "Alice")

	if err := repo.SubmitChoice(id, p1, Choice("lizard")); err == nil {
		t.Fatal("expected error for unknown choice")
	}
}

func TestLeaveSession(t *testing.T) {
	repo := newTestRepo()
	id, _ := repo.CreateSession()
	p1, _ := repo.JoinSession(id, "Alice")
	p2, _ := repo.JoinSession(id, "Bob")

	if err := repo.LeaveSession(id, p1); err != nil {
		t.Fatalf("should be able to leave: %v", err)
	}
	sess, err := repo.GetSession(id)
	if err != nil {
		t.Fatalf("session should survive while a player remains: %v", err)
	}
	// leadership falls to the next joiner without a handoff
	if leader := sess.Leader(); leader == nil || leader.ID != p2 {
		t.Fatal("leadership should pass to the remaining player")
	}

	if err := repo.LeaveSession(id, p2); err != nil {
		t.Fatalf("last player should be able to leave: %v", err)
	}
	if _, err := repo.GetSession(id); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("empty session should be deleted, got %v", err)
	}
}

func TestReapOnce(t *testing.T) {
	repo := newTestRepo()
	id, _ := repo.CreateSession()
	repo.JoinSession(id, "Alice")

	if n := repo.ReapOnce(time.Hour); n != 0 {
		t.Fatalf("fresh session must not be reaped, got %d", n)
	}
	if n := repo.ReapOnce(0); n != 1 {
		t.Fatalf("idle session should be reaped, got %d", n)
	}
	if _, err := repo.GetSession(id); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("reaped session should be gone, got %v", err)
	}
}

package game

import "testing"

func waitingSession() *Session {
	return &Session{
		ID:    "abc123",
		State: StateWaiting,
		Players: []Player{
			{ID: "p1", Name: "Alice"},
			{ID: "p2", Name: "Bob"},
		},
	}
}

func TestDeriveViewLeaderMayStart(t *testing.T) {
	sess := waitingSession()

	v := DeriveView(sess, "p1")
	if v.LeaderID != "p1" {
		t.Fatalf("expected p1 as leader, got %s", v.LeaderID)
	}
	if !v.CanStart {
		t.Fatal("leader of a waiting session with two players should be able to start")
	}

	v = DeriveView(sess, "p2")
	if v.CanStart {
		t.Fatal("only the lowest-join-order player may start")
	}
}

func TestDeriveViewSizeGuard(t *testing.T) {
	sess := waitingSession()
	sess.Players = sess.Players[:1]

	v := DeriveView(sess, "p1")
	if v.CanStart {
		t.Fatal("a single player can never start a round")
	}
}

func TestDeriveViewNoStartWhilePlaying(t *testing.T) {
	sess := waitingSession()
	sess.State = StatePlaying

	if v := DeriveView(sess, "p1"); v.CanStart {
		t.Fatal("a live round cannot be restarted")
	}

	// finished rounds may be restarted by the leader
	sess.State = StateFinished
	if v := DeriveView(sess, "p1"); !v.CanStart {
		t.Fatal("the leader should be able to start again after a round")
	}
}

func TestDeriveViewSelf(t *testing.T) {
	sess := waitingSession()
	sess.State = StatePlaying
	sess.Players[0].Choice = ChoiceRock
	sess.Players[0].Ready = true

	v := DeriveView(sess, "p1")
	if v.Choice != ChoiceRock {
		t.Fatalf("expected own choice to be visible, got %q", v.Choice)
	}
	if !v.Players[0].You || v.Players[1].You {
		t.Fatal("exactly the observing player should be marked")
	}
	if !v.Players[0].Ready {
		t.Fatal("readiness should be projected for everyone")
	}
}

func TestDeriveViewSpectator(t *testing.T) {
	sess := waitingSession()

	v := DeriveView(sess, "")
	if v.CanStart {
		t.Fatal("a non-member can never start a round")
	}
	if v.Choice != ChoiceUnset {
		t.Fatalf("a non-member has no choice, got %q", v.Choice)
	}
}

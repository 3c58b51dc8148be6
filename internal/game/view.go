package game

// PlayerView is what a client may see about another member: readiness but
// not the committed choice while the round is live.
type PlayerView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
	You   bool   `json:"you"`
}

// View is the pure projection of a session snapshot for one client.
// Deriving it is decoupled from the transition logic so the state machine
// can be exercised without any rendering concerns.
type View struct {
	SessionID string       `json:"sessionId"`
	State     State        `json:"state"`
	Players   []PlayerView `json:"players"`
	LeaderID  string       `json:"leaderId,omitempty"`
	CanStart  bool         `json:"canStart"`
	Choice    Choice       `json:"choice,omitempty"`
	Result    *RoundResult `json:"result,omitempty"`
}

// DeriveView projects a snapshot for the player identified by selfID.
// Call it on every notification; it never mutates the session.
func DeriveView(sess *Session, selfID string) View {
	v := View{
		SessionID: sess.ID,
		State:     sess.State,
		Players:   make([]PlayerView, 0, len(sess.Players)),
		Result:    sess.Result,
	}
	for _, p := range sess.Players {
		v.Players = append(v.Players, PlayerView{
			ID:    p.ID,
			Name:  p.Name,
			Ready: p.Ready,
			You:   p.ID == selfID,
		})
	}
	if leader := sess.Leader(); leader != nil {
		v.LeaderID = leader.ID
		v.CanStart = sess.State != StatePlaying && len(sess.Players) >= 2 && leader.ID == selfID
	}
	if self := sess.Player(selfID); self != nil {
		v.Choice = self.Choice
	}
	return v
}

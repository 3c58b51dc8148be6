package game

import "strings"

type State string

const (
	StateWaiting  State = "waiting"
	StatePlaying  State = "playing"
	StateFinished State = "finished"
)

type Choice string

const (
	ChoiceUnset    Choice = ""
	ChoiceRock     Choice = "rock"
	ChoicePaper    Choice = "paper"
	ChoiceScissors Choice = "scissors"
)

// Choices lists the legal committed choices.
var Choices = []Choice{ChoiceRock, ChoicePaper, ChoiceScissors}

func (c Choice) Valid() bool {
	return c == ChoiceRock || c == ChoicePaper || c == ChoiceScissors
}

// Beats reports whether c wins against other under cyclic dominance.
func (c Choice) Beats(other Choice) bool {
	switch {
	case c == ChoiceRock && other == ChoiceScissors:
		return true
	case c == ChoiceScissors && other == ChoicePaper:
		return true
	case c == ChoicePaper && other == ChoiceRock:
		return true
	}
	return false
}

// MaxPlayers caps session membership.
const MaxPlayers = 6

type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Choice Choice `json:"choice"`
	Ready  bool   `json:"ready"`
}

// Session is one decoded snapshot of a game document. Players preserves
// join order; the first entry is the one allowed to start rounds.
type Session struct {
	ID      string       `json:"id"`
	State   State        `json:"state"`
	Players []Player     `json:"players"`
	Result  *RoundResult `json:"result,omitempty"`
}

// Leader returns the player with the lowest join order, or nil when empty.
// Leadership is derived on every read so that leaves reassign it implicitly.
func (s *Session) Leader() *Player {
	if len(s.Players) == 0 {
		return nil
	}
	return &s.Players[0]
}

func (s *Session) Player(id string) *Player {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i]
		}
	}
	return nil
}

// AllReady reports whether the round may resolve: at least two members,
// every one of them committed.
func (s *Session) AllReady() bool {
	if len(s.Players) < 2 {
		return false
	}
	for _, p := range s.Players {
		if !p.Ready {
			return false
		}
	}
	return true
}

type OutcomeKind string

const (
	OutcomeWin  OutcomeKind = "win"  // a single player took the round
	OutcomeDraw OutcomeKind = "draw" // nobody scored
	OutcomeTie  OutcomeKind = "tie"  // several players share the top score
)

type Outcome struct {
	Kind  OutcomeKind `json:"kind"`
	Names []string    `json:"names,omitempty"`
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeWin:
		if len(o.Names) == 1 {
			return o.Names[0]
		}
	case OutcomeTie:
		return "Tie between: " + strings.Join(o.Names, ", ")
	}
	return "It's a tie! No points awarded."
}

type PlayerScore struct {
	Name   string `json:"name"`
	Choice Choice `json:"choice"`
	Score  int    `json:"score"`
}

// RoundResult is the read-model produced by resolving a round.
type RoundResult struct {
	Scores  map[string]PlayerScore `json:"scores"` // by player id
	Outcome Outcome                `json:"outcome"`
}

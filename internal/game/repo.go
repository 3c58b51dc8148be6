package game

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionFull      = errors.New("session full")
	ErrAlreadyStarted   = errors.New("game already in progress")
	ErrNotEnoughPlayers = errors.New("need at least two players")
	ErrNotLeader        = errors.New("only the first player may start a round")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Backend is the capability surface the repository needs from the realtime
// store: path-addressed reads and writes, generated child keys that sort in
// insertion order, and per-path snapshot subscriptions.
type Backend interface {
	Write(path string, value any) error
	Remove(path string) error
	Push(path string) (string, error)
	Read(path string) (any, bool)
	Children(path string) []string
	LastWrite(path string) (time.Time, bool)
	Subscribe(path string, onChange func(any), onError func(error)) (func(), error)
}

// Repository maps session ids to game documents in the backend. It holds no
// session state of its own; every operation works from a fresh read, and all
// coordination is advisory checks against possibly-stale snapshots.
type Repository struct {
	backend Backend
}

func NewRepository(b Backend) *Repository {
	return &Repository{backend: b}
}

func sessionPath(id string) string          { return "games/" + id }
func statePath(id string) string            { return "games/" + id + "/state" }
func playersPath(id string) string          { return "games/" + id + "/players" }
func playerPath(id, playerID string) string { return "games/" + id + "/players/" + playerID }
func resultPath(id string) string           { return "games/" + id + "/result" }

// CreateSession writes a fresh waiting session and returns its id,
// re-rolling on the (unlikely) id collision.
func (r *Repository) CreateSession() (string, error) {
	for {
		id := randomID(6)
		if _, exists := r.backend.Read(sessionPath(id)); exists {
			continue
		}
		if err := r.backend.Write(statePath(id), string(StateWaiting)); err != nil {
			return "", storeErr(err)
		}
		return id, nil
	}
}

// GetSession reads and decodes the current session document.
func (r *Repository) GetSession(id string) (*Session, error) {
	raw, ok := r.backend.Read(sessionPath(id))
	if !ok {
		return nil, ErrSessionNotFound
	}
	return decodeSession(id, raw), nil
}

// JoinSession appends a new player and returns its generated id. The guards
// run on a single read before the write; a round starting in between can
// still admit the player (see DESIGN.md).
func (r *Repository) JoinSession(id, name string) (string, error) {
	raw, ok := r.backend.Read(sessionPath(id))
	if !ok {
		return "", ErrSessionNotFound
	}
	sess := decodeSession(id, raw)
	if len(sess.Players) >= MaxPlayers {
		return "", ErrSessionFull
	}
	if sess.State != StateWaiting {
		return "", ErrAlreadyStarted
	}
	playerID, err := r.backend.Push(playersPath(id))
	if err != nil {
		return "", storeErr(err)
	}
	err = r.backend.Write(playerPath(id, playerID), map[string]any{
		"name":   name,
		"choice": string(ChoiceUnset),
		"ready":  false,
	})
	if err != nil {
		return "", storeErr(err)
	}
	return playerID, nil
}

// SubmitChoice overwrites the player's choice and marks them ready.
// Repeat submissions are harmless. Callers only invoke this while the
// session is playing; the repository does not re-check.
func (r *Repository) SubmitChoice(id, playerID string, choice Choice) error {
	if !choice.Valid() {
		return fmt.Errorf("invalid choice %q", choice)
	}
	if err := r.backend.Write(playerPath(id, playerID)+"/choice", string(choice)); err != nil {
		return storeErr(err)
	}
	if err := r.backend.Write(playerPath(id, playerID)+"/ready", true); err != nil {
		return storeErr(err)
	}
	return nil
}

// StartRound resets every player and flips the session to playing. The
// resets and the state write are independent writes, so subscribers can
// observe partially-reset transients; they treat state as authoritative.
func (r *Repository) StartRound(id string) error {
	raw, ok := r.backend.Read(sessionPath(id))
	if !ok {
		return ErrSessionNotFound
	}
	sess := decodeSession(id, raw)
	if len(sess.Players) < 2 {
		return ErrNotEnoughPlayers
	}
	for _, p := range sess.Players {
		err := r.backend.Write(playerPath(id, p.ID), map[string]any{
			"name":   p.Name,
			"choice": string(ChoiceUnset),
			"ready":  false,
		})
		if err != nil {
			return storeErr(err)
		}
	}
	if err := r.backend.Remove(resultPath(id)); err != nil {
		return storeErr(err)
	}
	if err := r.backend.Write(statePath(id), string(StatePlaying)); err != nil {
		return storeErr(err)
	}
	return nil
}

// LeaveSession removes the player, deleting the whole session once nobody
// is left. Callers treat failures as best-effort cleanup.
func (r *Repository) LeaveSession(id, playerID string) error {
	if err := r.backend.Remove(playerPath(id, playerID)); err != nil {
		return storeErr(err)
	}
	if len(r.backend.Children(playersPath(id))) == 0 {
		if err := r.backend.Remove(sessionPath(id)); err != nil {
			return storeErr(err)
		}
	}
	return nil
}

// Subscribe delivers a decoded session on every change to its subtree.
// A nil session means the document no longer exists.
func (r *Repository) Subscribe(id string, onChange func(*Session), onError func(error)) (func(), error) {
	cancel, err := r.backend.Subscribe(sessionPath(id), func(v any) {
		if v == nil {
			onChange(nil)
			return
		}
		onChange(decodeSession(id, v))
	}, onError)
	if err != nil {
		return nil, storeErr(err)
	}
	return cancel, nil
}

// Reap periodically deletes sessions without a write in the last ttl.
// Covers sessions abandoned by disconnects, where nobody is left to leave.
func (r *Repository) Reap(done <-chan struct{}, ttl, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			r.ReapOnce(ttl)
		}
	}
}

// ReapOnce deletes idle sessions and returns how many were removed.
func (r *Repository) ReapOnce(ttl time.Duration) int {
	reaped := 0
	for _, id := range r.backend.Children("games") {
		t, ok := r.backend.LastWrite(sessionPath(id))
		if !ok || time.Since(t) <= ttl {
			continue
		}
		if err := r.backend.Remove(sessionPath(id)); err == nil {
			reaped++
		}
	}
	return reaped
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func randomID(n int) string {
	letters := []rune("abcdefghijklmnopqrstuvwxyz0123456789")
	b := make([]rune, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}

// decodeSession turns a raw store snapshot into a Session. Player order
// follows the generated key order, which is join order.
func decodeSession(id string, v any) *Session {
	sess := &Session{ID: id, State: StateWaiting}
	m, ok := v.(map[string]any)
	if !ok {
		return sess
	}
	if s, ok := m["state"].(string); ok {
		sess.State = State(s)
	}
	if players, ok := m["players"].(map[string]any); ok {
		keys := make([]string, 0, len(players))
		for k := range players {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sess.Players = append(sess.Players, decodePlayer(k, players[k]))
		}
	}
	if result, ok := m["result"].(map[string]any); ok {
		sess.Result = decodeResult(result)
	}
	return sess
}

func decodePlayer(id string, v any) Player {
	p := Player{ID: id}
	m, ok := v.(map[string]any)
	if !ok {
		return p
	}
	if name, ok := m["name"].(string); ok {
		p.Name = name
	}
	if choice, ok := m["choice"].(string); ok {
		p.Choice = Choice(choice)
	}
	if ready, ok := m["ready"].(bool); ok {
		p.Ready = ready
	}
	return p
}

func encodeResult(res *RoundResult) map[string]any {
	scores := make(map[string]any, len(res.Scores))
	for id, ps := range res.Scores {
		scores[id] = map[string]any{
			"name":   ps.Name,
			"choice": string(ps.Choice),
			"score":  ps.Score,
		}
	}
	names := make([]any, 0, len(res.Outcome.Names))
	for _, n := range res.Outcome.Names {
		names = append(names, n)
	}
	return map[string]any{
		"scores": scores,
		"outcome": map[string]any{
			"kind":  string(res.Outcome.Kind),
			"names": names,
		},
	}
}

func decodeResult(m map[string]any) *RoundResult {
	res := &RoundResult{Scores: make(map[string]PlayerScore)}
	if scores, ok := m["scores"].(map[string]any); ok {
		for id, raw := range scores {
			sm, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			ps := PlayerScore{}
			if name, ok := sm["name"].(string); ok {
				ps.Name = name
			}
			if choice, ok := sm["choice"].(string); ok {
				ps.Choice = Choice(choice)
			}
			if score, ok := sm["score"].(int); ok {
				ps.Score = score
			}
			res.Scores[id] = ps
		}
	}
	if outcome, ok := m["outcome"].(map[string]any); ok {
		if kind, ok := outcome["kind"].(string); ok {
			res.Outcome.Kind = OutcomeKind(kind)
		}
		if names, ok := outcome["names"].([]any); ok {
			for _, n := range names {
				if name, ok := n.(string); ok {
					res.Outcome.Names = append(res.Outcome.Names, name)
				}
			}
		}
	}
	return res
}

package game

import (
	"github.com/rs/zerolog/log"
)

// Watch subscribes to a session and layers the transition logic on top:
// whenever a snapshot shows a playing session with two or more players all
// ready, the watcher resolves the round and persists result and state.
// Every watcher evaluates the guard independently, so concurrent observers
// may each write the finish; the resolver is deterministic over the same
// choices, so the duplicate writes converge (last writer wins safely).
func (r *Repository) Watch(id string, onChange func(*Session), onError func(error)) (func(), error) {
	return r.Subscribe(id, func(sess *Session) {
		if sess != nil {
			r.maybeResolve(sess)
		}
		onChange(sess)
	}, onError)
}

// maybeResolve commits the playing -> finished transition when the guard
// holds. Partially-reset transients from an in-flight StartRound never pass
// it: state is authoritative, and a snapshot with state playing but not
// every player ready is simply re-evaluated on the next notification.
func (r *Repository) maybeResolve(sess *Session) {
	if sess.State != StatePlaying || !sess.AllReady() {
		return
	}
	result := Resolve(sess.Players)
	if err := r.backend.Write(resultPath(sess.ID), encodeResult(result)); err != nil {
		log.Error().Err(err).Str("session", sess.ID).Msg("persist result")
		return
	}
	if err := r.backend.Write(statePath(sess.ID), string(StateFinished)); err != nil {
		log.Error().Err(err).Str("session", sess.ID).Msg("persist state")
		return
	}
	log.Info().Str("session", sess.ID).Str("outcome", result.Outcome.String()).Msg("round resolved")
}

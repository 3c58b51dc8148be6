// Package store is an in-memory, path-addressable realtime store in the
// manner of Firebase's Realtime Database: values live in a single tree,
// writes address slash-separated paths, and subscribers receive the full
// snapshot of their subtree on every change beneath it.
package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrClosed      = errors.New("store closed")
	ErrInvalidPath = errors.New("invalid path")
)

type update struct {
	value any // nil means the path is absent
}

type subscription struct {
	path    []string
	updates chan update // cap 1, stale snapshots are coalesced away
	errs    chan error
	quit    chan struct{}
}

// Store holds the tree, its subscribers, and last-write times per path.
type Store struct {
	mu     sync.Mutex
	root   map[string]any
	subs   map[int]*subscription
	nextID int
	seq    uint64
	mtimes map[string]time.Time
	closed bool
	now    func() time.Time
}

func New() *Store {
	return &Store{
		root:   make(map[string]any),
		subs:   make(map[int]*subscription),
		mtimes: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Write sets the value at path, replacing any existing subtree.
func (s *Store) Write(path string, value any) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	setAt(s.root, segs, clone(value))
	s.mtimes[path] = s.now()
	s.notify(segs)
	return nil
}

// Remove deletes the subtree at path. Emptied parents cease to exist,
// matching the remote-store model where empty nodes are not represented.
func (s *Store) Remove(path string) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	deleteAt(s.root, segs)
	prefix := path + "/"
	for p := range s.mtimes {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(s.mtimes, p)
		}
	}
	s.notify(segs)
	return nil
}

// Push returns a fresh child key for path. Keys sort lexically in
// generation order, so child iteration order equals insertion order.
func (s *Store) Push(path string) (string, error) {
	if _, err := splitPath(path); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}
	s.seq++
	return fmt.Sprintf("%010d-%s", s.seq, uuid.NewString()[:8]), nil
}

// Read returns a deep copy of the value at path, or false if absent.
func (s *Store) Read(path string) (any, bool) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := getAt(s.root, segs)
	if !ok {
		return nil, false
	}
	return clone(v), true
}

// Children returns the sorted child keys of the node at path.
func (s *Store) Children(path string) []string {
	segs, err := splitPath(path)
	if err != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := getAt(s.root, segs)
	if !ok {
		return nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LastWrite reports the most recent write time at or beneath path.
func (s *Store) LastWrite(path string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest time.Time
	found := false
	prefix := path + "/"
	for p, t := range s.mtimes {
		if p != path && !strings.HasPrefix(p, prefix) {
			continue
		}
		if !found || t.After(latest) {
			latest = t
			found = true
		}
	}
	return latest, found
}

// Subscribe delivers the current snapshot of path immediately, then a fresh
// full snapshot after every change at or beneath path. A nil snapshot means
// the path does not exist (distinct from an error). onChange is invoked from
// a dedicated goroutine, one subscriber at a time, newest snapshot winning
// when deliveries fall behind. The returned function cancels the
// subscription; no callbacks fire after it returns.
func (s *Store) Subscribe(path string, onChange func(any), onError func(error)) (func(), error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	sub := &subscription{
		path:    segs,
		updates: make(chan update, 1),
		errs:    make(chan error, 1),
		quit:    make(chan struct{}),
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = sub
	v, ok := getAt(s.root, segs)
	if ok {
		sub.publish(update{value: clone(v)})
	} else {
		sub.publish(update{value: nil})
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-sub.quit:
				return
			case err := <-sub.errs:
				if onError != nil {
					onError(err)
				}
			case u := <-sub.updates:
				select {
				case <-sub.quit:
					return
				default:
				}
				onChange(u.value)
			}
		}
	}()

	cancel := func() {
		s.mu.Lock()
		if _, live := s.subs[id]; live {
			delete(s.subs, id)
			close(sub.quit)
		}
		s.mu.Unlock()
		<-done
	}
	return cancel, nil
}

// Close fails all live subscriptions and rejects further writes.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, sub := range s.subs {
		select {
		case sub.errs <- ErrClosed:
		default:
		}
	}
}

// publish replaces any undelivered snapshot with the newer one. Callers
// hold s.mu, so there is a single producer per subscription.
func (sub *subscription) publish(u update) {
	for {
		select {
		case sub.updates <- u:
			return
		default:
		}
		select {
		case <-sub.updates:
		default:
		}
	}
}

// notify pushes fresh snapshots to every subscriber whose path is an
// ancestor or descendant of the changed path. s.mu must be held.
func (s *Store) notify(changed []string) {
	for _, sub := range s.subs {
		if !related(sub.path, changed) {
			continue
		}
		v, ok := getAt(s.root, sub.path)
		if ok {
			sub.publish(update{value: clone(v)})
		} else {
			sub.publish(update{value: nil})
		}
	}
}

func related(a, b []string) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}
	segs := strings.Split(path, "/")
	for _, seg := range segs {
		if seg == "" {
			return nil, ErrInvalidPath
		}
	}
	return segs, nil
}

func setAt(node map[string]any, segs []string, value any) {
	if len(segs) == 1 {
		node[segs[0]] = value
		return
	}
	child, ok := node[segs[0]].(map[string]any)
	if !ok {
		child = make(map[string]any)
		node[segs[0]] = child
	}
	setAt(child, segs[1:], value)
}

func getAt(node map[string]any, segs []string) (any, bool) {
	v, ok := node[segs[0]]
	if !ok {
		return nil, false
	}
	if len(segs) == 1 {
		return v, true
	}
	child, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	return getAt(child, segs[1:])
}

// deleteAt removes the subtree at segs and reports whether node is now empty.
func deleteAt(node map[string]any, segs []string) bool {
	if len(segs) == 1 {
		delete(node, segs[0])
		return len(node) == 0
	}
	child, ok := node[segs[0]].(map[string]any)
	if !ok {
		return len(node) == 0
	}
	if deleteAt(child, segs[1:]) {
		delete(node, segs[0])
	}
	return len(node) == 0
}

func clone(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	out := make(map[string]any, len(m))
	for k, c := range m {
		out[k] = clone(c)
	}
	return out
}

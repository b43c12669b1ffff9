package inflight

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrInFlight is returned when the same action is triggered again before the
// previous request resolved.
var ErrInFlight = errors.New("action already in progress")

// Guard tracks mutating actions that are waiting on the backend, keyed by
// something like "accept:42". A key can be held by one caller at a time.
type Guard struct {
	active map[string]time.Time
	mu     sync.Mutex
}

func NewGuard() *Guard {
	return &Guard{
		active: make(map[string]time.Time),
	}
}

// Begin claims key. The returned release func must be called once the
// request resolved; ok is false if key is already held.
func (g *Guard) Begin(key string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.active[key]; busy {
		return func() {}, false
	}
	g.active[key] = time.Now()
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.active, key)
			g.mu.Unlock()
		})
	}, true
}

// Do runs fn while holding key, or returns ErrInFlight.
func (g *Guard) Do(key string, fn func() error) error {
	release, ok := g.Begin(key)
	if !ok {
		return ErrInFlight
	}
	defer release()
	return fn()
}

// Keys lists held keys, oldest first.
func (g *Guard) Keys() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	keys := make([]string, 0, len(g.active))
	for k := range g.active {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return g.active[keys[i]].Before(g.active[keys[j]])
	})
	return keys
}

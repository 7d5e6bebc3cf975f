// Package room implements the room and connection manager (spec.md
// §4.7): admission, membership, rate limiting, broadcast, disconnect
// tracking, and the reconnect/catch-up handshake, plus the per-room tick
// loop that drives a frame engine and game state.
package room

import "time"

// ValidationResult mirrors the teacher's anti-cheat dispatch pattern
// (internal/game/anticheat.go's ValidationResult enum), generalized from
// physics-plausibility checks to the admission-time checks spec.md §4.7
// and §7 require: rate limit, message size, and input validity.
type ValidationResult int

const (
	// ResultOK admits the input into the frame engine.
	ResultOK ValidationResult = iota
	// ResultDropped silently discards the message: no violation is
	// recorded (e.g. input from a player the room doesn't recognize, or
	// before the game has started).
	ResultDropped
	// ResultRateLimited means the per-player request budget was
	// exceeded often enough, within the sliding window, to close the
	// connection with code 4003 (spec.md §7: RateLimited closes "after
	// sustained breach", distinct from the generic policy_violation
	// threshold below).
	ResultRateLimited
	// ResultInvalidInput means a single violation (malformed input,
	// out-of-range frame/coordinate, undefined flag, player_id
	// mismatch) was recorded and dropped, but the sliding-window
	// violation count hasn't reached the close threshold yet.
	ResultInvalidInput
	// ResultClose means the sliding-window violation count just reached
	// DefaultViolationThreshold; the caller should close with code 4005
	// (policy_violation).
	ResultClose
)

// DefaultRateLimit is the sliding-window request budget per player_id
// (spec.md §4.7).
const DefaultRateLimit = 100

// DefaultViolationThreshold closes a connection once this many violations
// have been recorded within the sliding window (spec.md §4.5's "≥ N
// violations in a sliding window closes the connection").
const DefaultViolationThreshold = 20

// DefaultRateBreachThreshold closes a connection once the rate budget has
// been exceeded this many times within the sliding window — the
// "sustained breach" spec.md §7 distinguishes from a single over-budget
// request, which is only ever dropped.
const DefaultRateBreachThreshold = 20

// DefaultViolationWindow is the sliding window width used for both the
// rate limiter and the violation counter.
const DefaultViolationWindow = time.Second

// playerGuard tracks one player's request timestamps (for the rate
// limiter), rate-breach timestamps (for the sustained-breach close), and
// violation timestamps (for the policy-violation threshold) — each
// pruned to the trailing window on every check.
type playerGuard struct {
	requests    []time.Time
	rateBreach  []time.Time
	violations  []time.Time
}

// Limiter enforces the per-player_id sliding-window rate limit and
// violation-threshold policy. Not safe for concurrent use from multiple
// goroutines; callers serialize access the same way Room serializes all
// other per-player state (single admission/dispatch path per spec.md §5).
type Limiter struct {
	rate             int
	window           time.Duration
	violationMax     int
	rateBreachMax    int
	guards           map[string]*playerGuard
}

// NewLimiter builds a Limiter with the given requests-per-window budget
// and violation threshold. rateBreachMax bounds how many times the rate
// budget may be exceeded within window before the connection is closed
// with code 4003; violationMax is the same bound for the generic
// policy_violation (4005) counter.
func NewLimiter(rate, violationMax, rateBreachMax int, window time.Duration) *Limiter {
	return &Limiter{
		rate:          rate,
		window:        window,
		violationMax:  violationMax,
		rateBreachMax: rateBreachMax,
		guards:        make(map[string]*playerGuard),
	}
}

func (l *Limiter) guardFor(playerID string) *playerGuard {
	g, ok := l.guards[playerID]
	if !ok {
		g = &playerGuard{}
		l.guards[playerID] = g
	}
	return g
}

func prune(times []time.Time, now time.Time, window time.Duration) []time.Time {
	cut := 0
	for cut < len(times) && now.Sub(times[cut]) > window {
		cut++
	}
	return times[cut:]
}

// AllowRequest records one incoming request for playerID at now and
// reports whether it falls within the rate budget. A request beyond the
// budget is never admitted, but per spec.md §4.7/§7 it is only dropped —
// use RecordRateBreach to decide whether the sustained-breach threshold
// has also been crossed.
func (l *Limiter) AllowRequest(playerID string, now time.Time) bool {
	g := l.guardFor(playerID)
	g.requests = prune(g.requests, now, l.window)
	if len(g.requests) >= l.rate {
		return false
	}
	g.requests = append(g.requests, now)
	return true
}

// RecordRateBreach records one over-budget request for playerID at now
// and reports whether the sliding-window breach count has reached the
// threshold that should close the connection with code 4003 (spec.md
// §7: RateLimited "close after sustained breach").
func (l *Limiter) RecordRateBreach(playerID string, now time.Time) bool {
	g := l.guardFor(playerID)
	g.rateBreach = prune(g.rateBreach, now, l.window)
	g.rateBreach = append(g.rateBreach, now)
	return len(g.rateBreach) >= l.rateBreachMax
}

// RecordViolation records one violation for playerID at now and reports
// whether the sliding-window violation count has reached the threshold
// that should close the connection.
func (l *Limiter) RecordViolation(playerID string, now time.Time) bool {
	g := l.guardFor(playerID)
	g.violations = prune(g.violations, now, l.window)
	g.violations = append(g.violations, now)
	return len(g.violations) >= l.violationMax
}

// Forget drops tracking state for a player who has left the room.
func (l *Limiter) Forget(playerID string) {
	delete(l.guards, playerID)
}

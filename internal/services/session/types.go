package session

import "sync"

// Outcome of session resolution at application start
type Outcome string

const (
	// OutcomeUnauthenticated routes to onboarding
	OutcomeUnauthenticated Outcome = "unauthenticated"
	// OutcomeAuthenticatedFresh starts on the default screen
	OutcomeAuthenticatedFresh Outcome = "authenticated_fresh"
	// OutcomeAuthenticatedRestored restores the last-visited screen
	OutcomeAuthenticatedRestored Outcome = "authenticated_restored"
)

// Resolution is the result of the startup session check
type Resolution struct {
	Outcome Outcome
	Screen  string
	Tab     string
}

// Event is an auth lifecycle notification delivered to subscribers
type Event string

const (
	EventSignedIn  Event = "signed_in"
	EventSignedOut Event = "signed_out"
)

// Subscription is the single cancellation handle for one subscriber.
// Cancel is idempotent; after it returns the callback will not be
// invoked again.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Cancel removes the subscription
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

// DefaultScreen is where a fresh authenticated session lands
const DefaultScreen = "home"

// authOnlyScreens are never valid restore targets; landing on one with
// a live session would strand the user on an auth flow
var authOnlyScreens = map[string]bool{
	"onboarding": true,
	"login":      true,
	"otp":        true,
}

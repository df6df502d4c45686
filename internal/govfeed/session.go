package govfeed

import (
	"context"
	"errors"
)

// ErrNotRendered means the incident table never appeared after navigation.
// It is distinct from an absent page button or row, which ends the walk.
var ErrNotRendered = errors.New("incident table did not render")

// Session is one live browser tab. Lookups report absence with found=false
// rather than an error so the walk can tell "no more data" from a fault.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, xpath string) (found bool, err error)
	Text(ctx context.Context, xpath string) (text string, found bool, err error)
	// Close terminates the browser process behind the session.
	Close() error
}

// Launcher starts browser sessions.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

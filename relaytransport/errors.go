package relaytransport

import (
	"errors"
	"fmt"
)

// ErrRelayDeclined is wrapped by errors for relays that answered but refused the request.
var ErrRelayDeclined = errors.New("relaytransport: relay declined request")

// Error is a failed exchange with a relay server.
type Error struct {
	URL        string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("relaytransport: %s: %s", e.URL, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("relaytransport: %s: status %d: %s", e.URL, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

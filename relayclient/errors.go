package relayclient

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRelayedTransaction is returned by Relay once every candidate relay
	// has been tried without success.
	ErrNoRelayedTransaction = errors.New("relayclient: no relay accepted the transaction")

	// ErrNoReadyRelay is returned when no candidate relay is ready.
	ErrNoReadyRelay = errors.New("relayclient: no relay is ready")

	// ErrInvalidRelayResponse is wrapped by ValidateRelayResponse failures.
	ErrInvalidRelayResponse = errors.New("relayclient: invalid relay response")
)

// ConfigurationError reports a request that cannot be built from the caller's
// input and the static configuration.
type ConfigurationError struct {
	Field string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("relayclient: %s: %s", e.Field, e.Msg)
}

// SigningError wraps a failure to obtain a valid signature from the sender.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("relayclient: signing failed: %v", e.Err)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

// Stage names the step of a relay attempt that failed.
type Stage string

const (
	StagePrepare   Stage = "prepare"
	StageEstimate  Stage = "estimate"
	StageBalance   Stage = "balance"
	StageVerifier  Stage = "verifier"
	StageHub       Stage = "hub"
	StageSubmit    Stage = "submit"
	StageValidate  Stage = "validate"
	StageBroadcast Stage = "broadcast"
)

// RelayRejection reports that a candidate relay cannot be used for a request.
// Relay moves on to the next candidate when it sees one.
type RelayRejection struct {
	URL    string
	Stage  Stage
	Reason string
	Err    error
}

func (e *RelayRejection) Error() string {
	msg := fmt.Sprintf("relayclient: relay %s rejected at %s: %s", e.URL, e.Stage, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RelayRejection) Unwrap() error {
	return e.Err
}

func reject(url string, stage Stage, reason string, err error) *RelayRejection {
	return &RelayRejection{URL: url, Stage: stage, Reason: reason, Err: err}
}

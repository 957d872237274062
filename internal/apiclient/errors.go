package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrRemoteCall matches every *RemoteCallFailure through errors.Is.
var ErrRemoteCall = errors.New("remote call failed")

// RemoteCallFailure is the single error shape of the gateway: transport
// failures and non-2xx answers alike. Message is what the UI shows.
type RemoteCallFailure struct {
	Op      string
	Status  int
	Message string
	// Payload is the server's JSON error object, verbatim, when it sent one.
	Payload map[string]any
	Err     error
}

func (e *RemoteCallFailure) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}
	return e.Op + ": remote call failed"
}

func (e *RemoteCallFailure) Unwrap() error {
	return e.Err
}

func (e *RemoteCallFailure) Is(target error) bool {
	return target == ErrRemoteCall
}

// MessageOr returns the failure message of err when it is a remote call
// failure with a message, otherwise fallback.
func MessageOr(err error, fallback string) string {
	var failure *RemoteCallFailure
	if errors.As(err, &failure) && failure.Message != "" {
		return failure.Message
	}
	return fallback
}

func failureFromBody(op string, status int, body []byte, fallback string) *RemoteCallFailure {
	failure := &RemoteCallFailure{
		Op:      op,
		Status:  status,
		Message: fallback,
	}

	var payload map[string]any
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil || payload == nil {
		return failure
	}
	// A JSON error object replaces the fallback entirely; without a message
	// field the caller's own wording applies.
	failure.Payload = payload
	failure.Message = ""

	for _, key := range []string{"message", "error"} {
		if msg, ok := payload[key].(string); ok && msg != "" {
			failure.Message = msg
			break
		}
	}
	return failure
}

package wake

import (
	"fmt"
	"time"
)

// Result is the outcome of a wake attempt.
type Result int

const (
	// Woken means the link was confirmed, either by the initial state query
	// or by a satisfying notification.
	Woken Result = iota + 1
	// TimedOut means no confirmation arrived within the timeout.
	TimedOut
	// Cancelled means the caller's context ended first.
	Cancelled
)

var resultNames = map[Result]string{
	Woken:     "woken",
	TimedOut:  "timed_out",
	Cancelled: "cancelled",
}

func (r Result) String() string {
	if s, ok := resultNames[r]; ok {
		return s
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

// MarshalText implements encoding.TextMarshaler.
func (r Result) MarshalText() ([]byte, error) {
	s, ok := resultNames[r]
	if !ok {
		return nil, fmt.Errorf("invalid wake result %d", int(r))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Result) UnmarshalText(text []byte) error {
	v, err := ParseResult(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ParseResult parses the textual form produced by String.
func ParseResult(s string) (Result, error) {
	for r, name := range resultNames {
		if name == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown wake result %q", s)
}

// Attempt records a single call to Wake.
type Attempt struct {
	ID       string
	RadioID  string
	Started  time.Time
	Duration time.Duration
	Timeout  time.Duration
	Result   Result
	// ActionIssued is true when the reconnect command was sent.
	ActionIssued bool
	// Shortcut is true when the initial state query was already satisfied.
	Shortcut bool
	// Extensions counts progress extensions granted during the wait.
	Extensions int
	Err        error
}

package event

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPredicate is returned by ParsePredicate for an unknown expression.
var ErrInvalidPredicate = errors.New("invalid predicate")

// Predicate decides whether an event satisfies a condition.
// Predicates must be pure; they run on the delivering goroutine.
type Predicate func(Event) bool

// LinkConnected matches a link reporting connected, or a connectivity change
// to connected on any interface.
func LinkConnected() Predicate {
	return func(ev Event) bool {
		switch e := ev.(type) {
		case LinkStateChanged:
			return e.State == LinkStateConnected
		case ConnectivityChanged:
			return e.Connected
		}
		return false
	}
}

// InterfaceConnected matches a connectivity change to connected for the named
// interface only.
func InterfaceConnected(name string) Predicate {
	return func(ev Event) bool {
		e, ok := ev.(ConnectivityChanged)
		return ok && e.Connected && e.Interface == name
	}
}

// HandshakeCompleted matches the final handshake step.
func HandshakeCompleted() Predicate {
	return func(ev Event) bool {
		e, ok := ev.(HandshakeStateChanged)
		return ok && e.State == HandshakeStateCompleted
	}
}

// ReconnectInProgress matches events that show the radio is working on a
// reconnection without having finished it.
func ReconnectInProgress() Predicate {
	return func(ev Event) bool {
		switch e := ev.(type) {
		case Reconnecting:
			return true
		case LinkStateChanged:
			return e.State == LinkStateConnecting
		case HandshakeStateChanged:
			return e.State.InProgress()
		case RadioStateChanged:
			return e.State == RadioStateEnabling
		}
		return false
	}
}

// AnyOf matches when at least one of preds matches.
func AnyOf(preds ...Predicate) Predicate {
	return func(ev Event) bool {
		for _, p := range preds {
			if p(ev) {
				return true
			}
		}
		return false
	}
}

// AllOf matches when every one of preds matches. An empty AllOf matches nothing.
func AllOf(preds ...Predicate) Predicate {
	return func(ev Event) bool {
		if len(preds) == 0 {
			return false
		}
		for _, p := range preds {
			if !p(ev) {
				return false
			}
		}
		return true
	}
}

// Not inverts p.
func Not(p Predicate) Predicate {
	return func(ev Event) bool { return !p(ev) }
}

// ForRadio restricts p to events from radioID.
func ForRadio(radioID string, p Predicate) Predicate {
	return func(ev Event) bool {
		return ev.RadioID() == radioID && p(ev)
	}
}

// ParsePredicate builds a predicate from a config expression:
//
//	link                  LinkConnected
//	handshake             HandshakeCompleted
//	progress              ReconnectInProgress
//	interface:<name>      InterfaceConnected(name)
//	any(<expr>,<expr>...) AnyOf
//	all(<expr>,<expr>...) AllOf
//	not(<expr>)           Not
func ParsePredicate(expr string) (Predicate, error) {
	expr = strings.TrimSpace(expr)
	switch expr {
	case "link":
		return LinkConnected(), nil
	case "handshake":
		return HandshakeCompleted(), nil
	case "progress":
		return ReconnectInProgress(), nil
	case "":
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidPredicate)
	}

	if name, ok := strings.CutPrefix(expr, "interface:"); ok {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("%w: interface name required", ErrInvalidPredicate)
		}
		return InterfaceConnected(name), nil
	}

	for _, op := range []string{"any", "all", "not"} {
		inner, ok := strings.CutPrefix(expr, op+"(")
		if !ok {
			continue
		}
		inner, ok = strings.CutSuffix(inner, ")")
		if !ok {
			return nil, fmt.Errorf("%w: unbalanced parentheses in %q", ErrInvalidPredicate, expr)
		}
		args, err := splitArgs(inner)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPredicate, expr, err)
		}
		preds := make([]Predicate, 0, len(args))
		for _, a := range args {
			p, err := ParsePredicate(a)
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
		}
		switch op {
		case "any":
			return AnyOf(preds...), nil
		case "all":
			return AllOf(preds...), nil
		default:
			if len(preds) != 1 {
				return nil, fmt.Errorf("%w: not() takes one argument", ErrInvalidPredicate)
			}
			return Not(preds[0]), nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrInvalidPredicate, expr)
}

// splitArgs splits a comma separated list, respecting nested parentheses.
func splitArgs(s string) ([]string, error) {
	var (
		args  []string
		depth int
		start int
	)
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return nil, errors.New("unexpected ')'")
			}
		case ',':
			if depth == 0 {
				args = append(args, s[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, errors.New("unbalanced parentheses")
	}
	args = append(args, s[start:])
	for i := range args {
		args[i] = strings.TrimSpace(args[i])
		if args[i] == "" {
			return nil, errors.New("empty argument")
		}
	}
	return args, nil
}

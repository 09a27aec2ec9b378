// Package match compiles the monitor pattern and tests response bodies against it.
package match

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/dlclark/regexp2"
)

const (
	// SyntaxRegexp2 is a backtracking engine with lookaround and backreferences.
	SyntaxRegexp2 = "regexp2"
	// SyntaxRE2 is Go's linear-time engine.
	SyntaxRE2 = "re2"

	DefaultTimeout = 2 * time.Second
)

var (
	// ErrEmptyPattern is returned by New for an empty pattern.
	ErrEmptyPattern = errors.New("empty pattern")
	// ErrPattern is matched by every *PatternError via errors.Is.
	ErrPattern = errors.New("invalid pattern")
)

// PatternError reports a pattern that failed to compile.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

func (e *PatternError) Is(target error) bool { return target == ErrPattern }

// Options selects the engine and bounds a single search.
type Options struct {
	Syntax  string        // SyntaxRegexp2 (default) or SyntaxRE2
	Timeout time.Duration // regexp2 only; 0 uses DefaultTimeout, <0 disables
}

type matcher interface {
	MatchString(s string) (bool, error)
}

// re2Matcher adapts *regexp.Regexp to the error-returning matcher shape.
type re2Matcher struct{ re *regexp.Regexp }

func (m re2Matcher) MatchString(s string) (bool, error) { return m.re.MatchString(s), nil }

// Engine wraps one compiled pattern. Safe for concurrent use.
type Engine struct {
	pattern string
	syntax  string
	m       matcher
}

// New compiles pattern. An empty pattern returns ErrEmptyPattern, a pattern
// that does not compile returns a *PatternError.
func New(pattern string, opts Options) (*Engine, error) {
	if pattern == "" {
		return nil, ErrEmptyPattern
	}

	syntax := opts.Syntax
	if syntax == "" {
		syntax = SyntaxRegexp2
	}

	e := &Engine{pattern: pattern, syntax: syntax}
	switch syntax {
	case SyntaxRegexp2:
		re, err := regexp2.Compile(pattern, regexp2.None)
		if err != nil {
			return nil, &PatternError{Pattern: pattern, Err: err}
		}
		switch {
		case opts.Timeout == 0:
			re.MatchTimeout = DefaultTimeout
		case opts.Timeout > 0:
			re.MatchTimeout = opts.Timeout
		}
		e.m = re
	case SyntaxRE2:
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, &PatternError{Pattern: pattern, Err: err}
		}
		e.m = re2Matcher{re: re}
	default:
		return nil, fmt.Errorf("unknown match syntax %q: expected %s or %s", syntax, SyntaxRegexp2, SyntaxRE2)
	}
	return e, nil
}

// Pattern returns the source pattern.
func (e *Engine) Pattern() string { return e.pattern }

// Syntax returns the engine name the pattern was compiled with.
func (e *Engine) Syntax() string { return e.syntax }

// Matches reports whether the pattern occurs anywhere in body.
// Matching is case-sensitive unless the pattern itself says otherwise.
// A search that errors (regexp2 timeout) counts as no match.
func (e *Engine) Matches(body []byte) bool {
	ok, err := e.m.MatchString(string(body))
	if err != nil {
		log.Printf("match: search aborted for pattern %q: %v", e.pattern, err)
		return false
	}
	return ok
}

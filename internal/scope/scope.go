// Package scope describes what a hunt is allowed to look at.
package scope

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Scope is an immutable descriptor of a scan target. The zero value is not
// usable; build one with Local or New.
type Scope struct {
	name    string
	users   map[string]struct{}
	include []glob.Glob
	exclude []glob.Glob
}

// Option configures a Scope under construction
type Option func(*builder) error

type builder struct {
	name    string
	users   []string
	include []string
	exclude []string
}

// WithName labels the scope in reports
func WithName(name string) Option {
	return func(b *builder) error {
		b.name = name
		return nil
	}
}

// WithUsers restricts user-hive expansion to the given SIDs
func WithUsers(sids ...string) Option {
	return func(b *builder) error {
		b.users = append(b.users, sids...)
		return nil
	}
}

// WithInclude limits the scope to registry keys and files matching any pattern
func WithInclude(patterns ...string) Option {
	return func(b *builder) error {
		b.include = append(b.include, patterns...)
		return nil
	}
}

// WithExclude drops registry keys and files matching any pattern
func WithExclude(patterns ...string) Option {
	return func(b *builder) error {
		b.exclude = append(b.exclude, patterns...)
		return nil
	}
}

// Local returns the scope covering the whole local system
func Local() *Scope {
	return &Scope{name: "local"}
}

// New builds a scope. Invalid glob patterns are reported here rather than
// during a hunt.
func New(opts ...Option) (*Scope, error) {
	b := &builder{name: "local"}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}

	s := &Scope{name: b.name}
	if len(b.users) > 0 {
		s.users = make(map[string]struct{}, len(b.users))
		for _, sid := range b.users {
			s.users[strings.ToUpper(sid)] = struct{}{}
		}
	}

	var err error
	if s.include, err = compile(b.include); err != nil {
		return nil, err
	}
	if s.exclude, err = compile(b.exclude); err != nil {
		return nil, err
	}
	return s, nil
}

func compile(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, pat := range patterns {
		// Backslash is the path separator here, not an escape.
		escaped := strings.ReplaceAll(strings.ToLower(pat), `\`, `\\`)
		g, err := glob.Compile(escaped, '\\', '/')
		if err != nil {
			return nil, fmt.Errorf("invalid scope pattern %q: %w", pat, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// Name returns the scope label
func (s *Scope) Name() string { return s.name }

// UserInScope reports whether the user hive identified by sid may be scanned
func (s *Scope) UserInScope(sid string) bool {
	if len(s.users) == 0 {
		return true
	}
	_, ok := s.users[strings.ToUpper(sid)]
	return ok
}

// PathInScope reports whether a registry key path or file path may be
// reported. Matching is case-insensitive.
func (s *Scope) PathInScope(path string) bool {
	p := strings.ToLower(path)
	for _, g := range s.exclude {
		if g.Match(p) {
			return false
		}
	}
	if len(s.include) == 0 {
		return true
	}
	for _, g := range s.include {
		if g.Match(p) {
			return true
		}
	}
	return false
}

func (s *Scope) String() string { return s.name }

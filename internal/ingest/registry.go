package ingest

import (
	"context"
	"regexp"
)

// HandlerFunc processes one parsed envelope.
type HandlerFunc func(ctx context.Context, env *Envelope) error

type binding struct {
	pattern *regexp.Regexp
	handler HandlerFunc
}

// Registry routes envelopes to handlers keyed by regular expressions over the
// envelope's action string. Bindings are tried in registration order and the
// first match wins, so narrower patterns register before broad ones.
type Registry struct {
	bindings []binding
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register compiles pattern and appends a binding. Panics on an invalid
// pattern; patterns are static strings fixed at startup.
func (r *Registry) Register(pattern string, handler HandlerFunc) {
	r.bindings = append(r.bindings, binding{
		pattern: regexp.MustCompile(pattern),
		handler: handler,
	})
}

// Dispatch routes env to the first matching handler. Returns (false, nil)
// when no binding matches.
func (r *Registry) Dispatch(ctx context.Context, env *Envelope) (bool, error) {
	action := env.Action()
	if action == "" {
		return false, nil
	}
	for _, b := range r.bindings {
		if b.pattern.MatchString(action) {
			return true, b.handler(ctx, env)
		}
	}
	return false, nil
}

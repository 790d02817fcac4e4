// Package analyzer runs configured analyzers as external processes and
// parses their suggestion output.
package analyzer

import (
	"fmt"
	"time"

	"github.com/polish-dev/polish/internal/suggest"
)

// Definition describes one configured analyzer. Analyzers are opaque
// external commands speaking the suggestion protocol on stdout; they
// receive the target file path as their sole positional argument.
type Definition struct {
	Name     string   `mapstructure:"name"`
	Command  string   `mapstructure:"command"`
	Args     []string `mapstructure:"args"`
	Disabled bool     `mapstructure:"disabled"`
}

// Status is the outcome of one analyzer invocation.
type Status string

const (
	StatusOK      Status = "ok"
	StatusError   Status = "error"
	StatusTimeout Status = "timeout"
	StatusSkipped Status = "skipped"
)

// Result is one analyzer's outcome for one file. Created once per
// (file, analyzer) pair per run and never mutated afterwards.
type Result struct {
	Analyzer    string
	Status      Status
	Suggestions []*suggest.Suggestion
	Malformed   int
	Elapsed     time.Duration
	Diagnostic  string
}

// Registry holds the configured analyzers in priority order (earlier in
// the config wins overlap ties).
type Registry struct {
	defs     []Definition
	priority map[string]int
}

// NewRegistry validates the analyzer definitions and fixes their
// priority order. Validation failures are configuration errors and must
// abort before any file is touched.
func NewRegistry(defs []Definition) (*Registry, error) {
	r := &Registry{priority: make(map[string]int, len(defs))}
	for i, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("analyzer %d: missing name", i)
		}
		if def.Command == "" {
			return nil, fmt.Errorf("analyzer %q: missing command", def.Name)
		}
		if _, dup := r.priority[def.Name]; dup {
			return nil, fmt.Errorf("analyzer %q: duplicate name", def.Name)
		}
		r.priority[def.Name] = i
		r.defs = append(r.defs, def)
	}
	return r, nil
}

// Enabled returns the analyzers to run, in priority order.
func (r *Registry) Enabled() []Definition {
	var defs []Definition
	for _, d := range r.defs {
		if !d.Disabled {
			defs = append(defs, d)
		}
	}
	return defs
}

// All returns every configured analyzer, disabled included, in
// priority order.
func (r *Registry) All() []Definition {
	return append([]Definition(nil), r.defs...)
}

// Get returns the definition for name.
func (r *Registry) Get(name string) (Definition, bool) {
	i, ok := r.priority[name]
	if !ok {
		return Definition{}, false
	}
	return r.defs[i], true
}

// Priority returns the configured rank of an analyzer; lower wins.
// Unknown names rank last.
func (r *Registry) Priority(name string) int {
	if i, ok := r.priority[name]; ok {
		return i
	}
	return len(r.defs)
}

// Len returns the number of configured analyzers, disabled included.
func (r *Registry) Len() int { return len(r.defs) }

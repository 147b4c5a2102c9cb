// Package envctx builds the environment-variable contract handed to every
// tool and hook subprocess.
//
// An Env is an immutable value: every operation that changes it returns a
// new Env. The process environment itself is never modified.
package envctx

import (
	"sort"
	"strings"
)

// Env is an immutable set of KEY=VALUE pairs.
type Env struct {
	vars map[string]string
}

// New copies pairs into a new Env.
func New(pairs map[string]string) Env {
	vars := make(map[string]string, len(pairs))
	for k, v := range pairs {
		vars[k] = v
	}
	return Env{vars: vars}
}

// Get returns the value for key.
func (e Env) Get(key string) (string, bool) {
	v, ok := e.vars[key]
	return v, ok
}

// Value returns the value for key, or "" when unset.
func (e Env) Value(key string) string {
	return e.vars[key]
}

// Len returns the number of variables.
func (e Env) Len() int {
	return len(e.vars)
}

// Keys returns the variable names in sorted order.
func (e Env) Keys() []string {
	keys := make([]string, 0, len(e.vars))
	for k := range e.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// With returns a copy of e with key set to value.
func (e Env) With(key, value string) Env {
	out := New(e.vars)
	out.vars[key] = value
	return out
}

// Merge returns a copy of e overlaid with other. Values in other win.
func (e Env) Merge(other Env) Env {
	out := New(e.vars)
	for k, v := range other.vars {
		out.vars[k] = v
	}
	return out
}

// Map returns a copy of the variables.
func (e Env) Map() map[string]string {
	return New(e.vars).vars
}

// Environ overlays e on base (in os.Environ form) and returns the merged
// list for exec.Cmd.Env. Entries in base whose key is set in e are dropped.
func (e Env) Environ(base []string) []string {
	out := make([]string, 0, len(base)+len(e.vars))
	for _, kv := range base {
		key := kv
		if idx := strings.IndexByte(kv, '='); idx >= 0 {
			key = kv[:idx]
		}
		if _, overridden := e.vars[key]; overridden {
			continue
		}
		out = append(out, kv)
	}
	for _, k := range e.Keys() {
		out = append(out, k+"="+e.vars[k])
	}
	return out
}

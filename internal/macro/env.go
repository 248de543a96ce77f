// © 2024 HLVM Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package macro implements the macro registry and the macro-time
// tree-walking interpreter that runs user macro bodies against unevaluated
// argument forms at compile time.
package macro

import (
	"strings"
)

// Env is one node of the interpreter's scope chain. A child owns its own
// bindings map and holds a non-owning reference to its parent; the chain is
// torn down when the call or block that created it exits.
type Env struct {
	vars   map[string]any
	parent *Env
}

func NewEnv() *Env {
	return &Env{vars: map[string]any{}}
}

// Extend creates a child scope. Used per function call and per let.
func (e *Env) Extend() *Env {
	return &Env{vars: map[string]any{}, parent: e}
}

// Define always writes into the current scope.
func (e *Env) Define(name string, value any) {
	e.vars[name] = value
}

// Lookup walks the chain to the root. Each scope is also probed with
// hyphens rewritten to underscores so kebab-case source identifiers match
// sanitized output identifiers.
func (e *Env) Lookup(name string) (any, bool) {
	underscored := strings.ReplaceAll(name, "-", "_")
	for scope := e; scope != nil; scope = scope.parent {
		if v, ok := scope.vars[name]; ok {
			return v, true
		}
		if underscored != name {
			if v, ok := scope.vars[underscored]; ok {
				return v, true
			}
		}
	}
	return nil, false
}

// © 2024 HLVM Authors
//
// SPDX-License-Identifier: Apache-2.0

package macro

import (
	"sync"

	"github.com/hlvm-dev/hqlc/internal/hql"
)

// Fn is a macro implementation: it receives the unevaluated argument forms
// and returns a replacement form for splicing into the surrounding tree.
type Fn func(args []hql.SExp, env *Env) (hql.SExp, error)

// The system macro table is process-wide and initialized exactly once, even
// under concurrent first access from parallel compilations. A plain nil
// check would be a check-then-act race. Writes happen only inside the Once;
// everything after sees a read-only map.
var (
	systemOnce   sync.Once
	systemMacros map[string]Fn
)

func loadSystemMacros() {
	systemOnce.Do(func() {
		systemMacros = map[string]Fn{}
		registerSystemMacros(systemMacros)
	})
}

// Registry holds the macros visible to one compilation session. System
// macros are shared and read-only; user macros and the processed-file set
// are private to the session.
type Registry struct {
	mu        sync.RWMutex
	user      map[string]Fn
	aliases   map[string]string
	processed map[string]bool
}

func NewRegistry() *Registry {
	loadSystemMacros()
	return &Registry{
		user:      map[string]Fn{},
		aliases:   map[string]string{},
		processed: map[string]bool{},
	}
}

// DefineMacro registers a user macro for this session.
func (r *Registry) DefineMacro(name string, fn Fn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.user[name] = fn
}

func (r *Registry) HasMacro(name string) bool {
	_, ok := r.GetMacro(name)
	return ok
}

func (r *Registry) GetMacro(name string) (Fn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if target, ok := r.aliases[name]; ok {
		name = target
	}
	if fn, ok := r.user[name]; ok {
		return fn, true
	}
	fn, ok := systemMacros[name]
	return fn, ok
}

// IsSystemMacro reports whether name is a built-in macro.
func (r *Registry) IsSystemMacro(name string) bool {
	_, ok := systemMacros[name]
	return ok
}

// ImportMacro makes a macro from one file visible to another, optionally
// under an alias. Only system macros may cross file boundaries.
func (r *Registry) ImportMacro(fromFile string, name string, toFile string, alias string) bool {
	if !r.IsSystemMacro(name) {
		return false
	}
	if alias == "" || alias == name {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[alias] = name
	return true
}

// MarkFileProcessed records that a file's macros have been expanded, so a
// module reached through more than one import edge is not re-expanded.
func (r *Registry) MarkFileProcessed(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed[path] = true
}

func (r *Registry) HasProcessedFile(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.processed[path]
}

// © 2024 HLVM Authors
//
// SPDX-License-Identifier: Apache-2.0

package hql

import (
	"fmt"
	"strconv"
	"strings"
)

// SExp is the surface tree shared by the parser, the macro expander, and the
// lowering engine. Nodes are immutable once constructed; macro templates copy
// structurally rather than aliasing.
type SExp interface {
	// Pos is the source position of the node. Nodes synthesized during
	// macro expansion may return nil until WithPos assigns an inherited
	// position.
	Pos() *Location
	sexp()
}

type Symbol struct {
	Name string
	Loc  *Location
}

func (s *Symbol) Pos() *Location { return s.Loc }
func (s *Symbol) sexp()          {}

func (s *Symbol) String() string { return s.Name }

// Literal holds a string, float64, bool, bigint (as a decimal string), or
// nil value.
type Literal struct {
	Value any
	// BigInt marks a string Value as a bigint literal rather than text.
	BigInt bool
	Loc    *Location
}

func (l *Literal) Pos() *Location { return l.Loc }
func (l *Literal) sexp()          {}

func (l *Literal) String() string {
	switch v := l.Value.(type) {
	case nil:
		return "nil"
	case string:
		if l.BigInt {
			return v + "n"
		}
		return strconv.Quote(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

type List struct {
	Elements []SExp
	Loc      *Location
}

func (l *List) Pos() *Location { return l.Loc }
func (l *List) sexp()          {}

func (l *List) String() string {
	parts := make([]string, 0, len(l.Elements))
	for _, e := range l.Elements {
		parts = append(parts, Sprint(e))
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// Head returns the leading symbol name of a list, or "" when the list is
// empty or does not start with a symbol.
func (l *List) Head() string {
	if len(l.Elements) == 0 {
		return ""
	}
	if sym, ok := l.Elements[0].(*Symbol); ok {
		return sym.Name
	}
	return ""
}

// NewSymbol constructs a symbol node.
func NewSymbol(name string, loc *Location) *Symbol {
	return &Symbol{Name: name, Loc: loc}
}

// NewLiteral constructs a literal node.
func NewLiteral(value any, loc *Location) *Literal {
	return &Literal{Value: value, Loc: loc}
}

// NewList constructs a list node.
func NewList(loc *Location, elements ...SExp) *List {
	return &List{Elements: elements, Loc: loc}
}

// Sprint renders a node back to surface syntax, mostly for diagnostics and
// dump output.
func Sprint(s SExp) string {
	switch n := s.(type) {
	case *Symbol:
		return n.String()
	case *Literal:
		return n.String()
	case *List:
		return n.String()
	default:
		return fmt.Sprintf("%v", s)
	}
}

// WithPos returns the node itself when it already carries a position, or a
// shallow copy carrying the inherited position otherwise. Macro expansion
// uses this so synthesized forms stay traceable to their originating form.
func WithPos(s SExp, loc *Location) SExp {
	if s == nil || s.Pos() != nil || loc == nil {
		return s
	}
	switch n := s.(type) {
	case *Symbol:
		return &Symbol{Name: n.Name, Loc: loc}
	case *Literal:
		return &Literal{Value: n.Value, BigInt: n.BigInt, Loc: loc}
	case *List:
		elements := make([]SExp, len(n.Elements))
		for i, e := range n.Elements {
			elements[i] = WithPos(e, loc)
		}
		return &List{Elements: elements, Loc: loc}
	default:
		return s
	}
}

// Copy performs the structural copy used by macro template substitution.
func Copy(s SExp) SExp {
	switch n := s.(type) {
	case *Symbol:
		c := *n
		return &c
	case *Literal:
		c := *n
		return &c
	case *List:
		elements := make([]SExp, len(n.Elements))
		for i, e := range n.Elements {
			elements[i] = Copy(e)
		}
		return &List{Elements: elements, Loc: n.Loc}
	default:
		return s
	}
}

// SplitTypeAnnotation splits a symbol name produced by the lexer's
// annotation merging, e.g. "x:Array<number>" into ("x", "Array<number>").
// Annotations are carried as opaque text; HQL itself never interprets them.
func SplitTypeAnnotation(name string) (string, string) {
	i := strings.IndexByte(name, ':')
	if i < 0 {
		return name, ""
	}
	return name[:i], name[i+1:]
}

// SanitizeName rewrites a kebab-case HQL identifier into the underscore
// form used by the output language.
func SanitizeName(name string) string {
	base, _ := SplitTypeAnnotation(name)
	return strings.ReplaceAll(base, "-", "_")
}

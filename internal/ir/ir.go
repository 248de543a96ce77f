// © 2024 HLVM Authors
//
// SPDX-License-Identifier: Apache-2.0

// Package ir defines the JavaScript-shaped tree produced by lowering and
// consumed by code generation. Nodes are produced once and treated as
// read-only by consumers. Every node optionally carries a source location
// for source mapping; locations on synthesized nodes may be nil.
package ir

import (
	"github.com/hlvm-dev/hqlc/internal/hql"
)

// Node is implemented by every IR node.
type Node interface {
	Pos() *hql.Location
	irnode()
}

// Expression is implemented by every node usable in expression position.
type Expression interface {
	Node
	expression()
}

// Statement is implemented by every node usable in statement position.
type Statement interface {
	Node
	statement()
}

// Pattern is implemented by every node usable as a binding target.
type Pattern interface {
	Node
	pattern()
}

// Base carries the optional source location embedded in every node.
type Base struct {
	Loc *hql.Location
}

func (n Base) Pos() *hql.Location { return n.Loc }
func (n Base) irnode()            {}

// DeclarationKind selects the output keyword of a variable declaration.
type DeclarationKind string

const (
	DeclKindConst DeclarationKind = "const"
	DeclKindLet   DeclarationKind = "let"
	DeclKindVar   DeclarationKind = "var"
)

// Program is an ordered sequence of top-level statements and declarations.
type Program struct {
	Base
	Body []Statement
}

// Identifier is both an expression and a binding target. TypeAnnotation is
// opaque TypeScript text carried through from the surface syntax.
type Identifier struct {
	Base
	Name           string
	TypeAnnotation string
}

func (n *Identifier) expression() {}
func (n *Identifier) pattern()    {}

type StringLiteral struct {
	Base
	Value string
}

func (n *StringLiteral) expression() {}

type NumericLiteral struct {
	Base
	Value float64
}

func (n *NumericLiteral) expression() {}

type BooleanLiteral struct {
	Base
	Value bool
}

func (n *BooleanLiteral) expression() {}

type NullLiteral struct {
	Base
}

func (n *NullLiteral) expression() {}

// BigIntLiteral keeps the digits as text; the value may exceed float64.
type BigIntLiteral struct {
	Base
	Value string
}

func (n *BigIntLiteral) expression() {}

type RegExpLiteral struct {
	Base
	Pattern string
	Flags   string
}

func (n *RegExpLiteral) expression() {}

type TemplateElement struct {
	Base
	Raw  string
	Tail bool
}

type TemplateLiteral struct {
	Base
	Quasis      []*TemplateElement
	Expressions []Expression
}

func (n *TemplateLiteral) expression() {}

type ThisExpression struct {
	Base
}

func (n *ThisExpression) expression() {}

// ArrayExpression elements may be nil for holes.
type ArrayExpression struct {
	Base
	Elements []Expression
}

func (n *ArrayExpression) expression() {}

type Property struct {
	Base
	Key       Expression
	Value     Expression
	Computed  bool
	Shorthand bool
}

// ObjectExpression properties are *Property or *SpreadElement, in source
// order.
type ObjectExpression struct {
	Base
	Properties []Expression
}

func (n *ObjectExpression) expression() {}
func (n *Property) expression()         {}

type SpreadElement struct {
	Base
	Argument Expression
}

func (n *SpreadElement) expression() {}

type CallExpression struct {
	Base
	Callee    Expression
	Arguments []Expression
	Optional  bool
}

func (n *CallExpression) expression() {}

type NewExpression struct {
	Base
	Callee    Expression
	Arguments []Expression
}

func (n *NewExpression) expression() {}

type MemberExpression struct {
	Base
	Object   Expression
	Property Expression
	Computed bool
	Optional bool
}

func (n *MemberExpression) expression() {}

type UnaryExpression struct {
	Base
	Operator string
	Argument Expression
}

func (n *UnaryExpression) expression() {}

type UpdateExpression struct {
	Base
	Operator string
	Argument Expression
	Prefix   bool
}

func (n *UpdateExpression) expression() {}

type BinaryExpression struct {
	Base
	Operator string
	Left     Expression
	Right    Expression
}

func (n *BinaryExpression) expression() {}

type LogicalExpression struct {
	Base
	Operator string
	Left     Expression
	Right    Expression
}

func (n *LogicalExpression) expression() {}

type AssignmentExpression struct {
	Base
	Operator string
	Left     Node
	Right    Expression
}

func (n *AssignmentExpression) expression() {}

type ConditionalExpression struct {
	Base
	Test       Expression
	Consequent Expression
	Alternate  Expression
}

func (n *ConditionalExpression) expression() {}

type SequenceExpression struct {
	Base
	Expressions []Expression
}

func (n *SequenceExpression) expression() {}

// FunctionExpression carries independent Async and Generator flags; lowering
// is responsible for setting them from contained await/yield.
type FunctionExpression struct {
	Base
	ID         *Identifier
	Params     []Pattern
	Body       *BlockStatement
	Async      bool
	Generator  bool
	ReturnType string
}

func (n *FunctionExpression) expression() {}

type ArrowFunctionExpression struct {
	Base
	Params []Pattern
	Body   Node
	Async  bool
}

func (n *ArrowFunctionExpression) expression() {}

type AwaitExpression struct {
	Base
	Argument Expression
}

func (n *AwaitExpression) expression() {}

type YieldExpression struct {
	Base
	Argument Expression
	Delegate bool
}

func (n *YieldExpression) expression() {}

type ExpressionStatement struct {
	Base
	Expression Expression
}

func (n *ExpressionStatement) statement() {}

type BlockStatement struct {
	Base
	Body []Statement
}

func (n *BlockStatement) statement() {}

type EmptyStatement struct {
	Base
}

func (n *EmptyStatement) statement() {}

type ReturnStatement struct {
	Base
	Argument Expression
}

func (n *ReturnStatement) statement() {}

type IfStatement struct {
	Base
	Test       Expression
	Consequent Statement
	Alternate  Statement
}

func (n *IfStatement) statement() {}

type WhileStatement struct {
	Base
	Test Expression
	Body Statement
}

func (n *WhileStatement) statement() {}

type DoWhileStatement struct {
	Base
	Test Expression
	Body Statement
}

func (n *DoWhileStatement) statement() {}

type ForStatement struct {
	Base
	Init   Node
	Test   Expression
	Update Expression
	Body   Statement
}

func (n *ForStatement) statement() {}

// ForOfStatement.LabelTargets lists the names of ancestor labels targeted by
// break/continue statements inside the body. Label lowering uses it to
// decide which label owns the expression wrapper.
type ForOfStatement struct {
	Base
	Left         Node
	Right        Expression
	Body         Statement
	Await        bool
	LabelTargets []string
}

func (n *ForOfStatement) statement() {}

// A for-of whose wrapping is deferred to an enclosing label flows through
// expression position until the label claims it.
func (n *ForOfStatement) expression() {}

type ForInStatement struct {
	Base
	Left  Node
	Right Expression
	Body  Statement
}

func (n *ForInStatement) statement() {}

type BreakStatement struct {
	Base
	Label *Identifier
}

func (n *BreakStatement) statement() {}

type ContinueStatement struct {
	Base
	Label *Identifier
}

func (n *ContinueStatement) statement() {}

type LabeledStatement struct {
	Base
	Label *Identifier
	Body  Statement
}

func (n *LabeledStatement) statement() {}

// A label that defers its wrapping to an enclosing label flows through
// expression position until the outermost targeted label claims it.
func (n *LabeledStatement) expression() {}

type ThrowStatement struct {
	Base
	Argument Expression
}

func (n *ThrowStatement) statement() {}

type CatchClause struct {
	Base
	Param Pattern
	Body  *BlockStatement
}

type TryStatement struct {
	Base
	Block     *BlockStatement
	Handler   *CatchClause
	Finalizer *BlockStatement
}

func (n *TryStatement) statement() {}

type SwitchCase struct {
	Base
	Test       Expression
	Consequent []Statement
}

type SwitchStatement struct {
	Base
	Discriminant Expression
	Cases        []*SwitchCase
}

func (n *SwitchStatement) statement() {}

// VariableDeclarator.Init is nil only when the declaring form explicitly
// permits an uninitialized binding.
type VariableDeclarator struct {
	Base
	ID   Pattern
	Init Expression
}

type VariableDeclaration struct {
	Base
	Kind         DeclarationKind
	Declarations []*VariableDeclarator
}

func (n *VariableDeclaration) statement() {}

type FunctionDeclaration struct {
	Base
	ID         *Identifier
	Params     []Pattern
	Body       *BlockStatement
	Async      bool
	Generator  bool
	ReturnType string
}

func (n *FunctionDeclaration) statement() {}

type MethodDefinition struct {
	Base
	Key      Expression
	Value    *FunctionExpression
	Kind     string
	Static   bool
	Computed bool
}

type ClassBody struct {
	Base
	Body []*MethodDefinition
}

type ClassDeclaration struct {
	Base
	ID         *Identifier
	SuperClass Expression
	Body       *ClassBody
}

func (n *ClassDeclaration) statement() {}

type ImportSpecifier struct {
	Base
	Imported *Identifier
	Local    *Identifier
}

type ImportDefaultSpecifier struct {
	Base
	Local *Identifier
}

type ImportNamespaceSpecifier struct {
	Base
	Local *Identifier
}

// ImportDeclaration specifiers are *ImportSpecifier,
// *ImportDefaultSpecifier, or *ImportNamespaceSpecifier.
type ImportDeclaration struct {
	Base
	Specifiers []Node
	Source     *StringLiteral
}

func (n *ImportDeclaration) statement() {}

type ExportSpecifier struct {
	Base
	Local    *Identifier
	Exported *Identifier
}

type ExportNamedDeclaration struct {
	Base
	Declaration Statement
	Specifiers  []*ExportSpecifier
	Source      *StringLiteral
}

func (n *ExportNamedDeclaration) statement() {}

type ExportDefaultDeclaration struct {
	Base
	Declaration Node
}

func (n *ExportDefaultDeclaration) statement() {}

type ExportAllDeclaration struct {
	Base
	Source *StringLiteral
}

func (n *ExportAllDeclaration) statement() {}

// ArrayPattern elements may be nil for skipped positions.
type ArrayPattern struct {
	Base
	Elements []Pattern
}

func (n *ArrayPattern) pattern() {}

type PropertyPattern struct {
	Base
	Key   string
	Value Pattern
}

type ObjectPattern struct {
	Base
	Properties []*PropertyPattern
	Rest       *RestElement
}

func (n *ObjectPattern) pattern() {}

type AssignmentPattern struct {
	Base
	Left  Pattern
	Right Expression
}

func (n *AssignmentPattern) pattern() {}

type RestElement struct {
	Base
	Argument Pattern
}

func (n *RestElement) pattern() {}

// The TypeScript-only declarative family is carried as largely-opaque
// structured data: names and member shapes are modeled, type text is not
// interpreted.

type TSSignature struct {
	Base
	Name     string
	Type     string
	Optional bool
}

type TSInterfaceDeclaration struct {
	Base
	ID      *Identifier
	Extends []string
	Members []*TSSignature
}

func (n *TSInterfaceDeclaration) statement() {}

type TSTypeAliasDeclaration struct {
	Base
	ID   *Identifier
	Type string
}

func (n *TSTypeAliasDeclaration) statement() {}

type TSEnumMember struct {
	Base
	Name string
	Init Expression
}

type TSEnumDeclaration struct {
	Base
	ID      *Identifier
	Members []*TSEnumMember
	Const   bool
}

func (n *TSEnumDeclaration) statement() {}

type TSModuleDeclaration struct {
	Base
	ID   *Identifier
	Body []Statement
}

func (n *TSModuleDeclaration) statement() {}

// © 2024 HLVM Authors
//
// SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/hlvm-dev/hqlc/internal/exc"
	"github.com/hlvm-dev/hqlc/internal/hql"
	"github.com/hlvm-dev/hqlc/internal/iter"
)

const (
	parserHQLLookahead = 8
	// maxParsingDepth bounds nesting so adversarial input fails with a
	// diagnostic instead of overflowing the host stack.
	maxParsingDepth    = 128
	maxQuasiquoteDepth = 32
)

type ParserHQL struct {
	reporter exc.Reporter
}

func NewParserHQL(reporter exc.Reporter) *ParserHQL {
	return &ParserHQL{reporter: reporter}
}

func (self *ParserHQL) PrepareParse(ctx context.Context, tokens hql.Iterator[*hql.Token], uri string) (*parserHQLTokens, error) {
	// Comments are carried by the token stream for tooling, but the tree
	// builder never sees them.
	filtered := iter.NewIteratorFilter(tokens, hql.Filter[*hql.Token](iter.FilterFunc[*hql.Token](func(ctx context.Context, t *hql.Token) bool {
		switch t.Type {
		case hql.TokenTypeComment, hql.TokenTypeWhitespace:
			return false
		default:
			return true
		}
	})))
	return &parserHQLTokens{
		reporter: self.reporter,
		ctx:      ctx,
		tokens:   iter.NewLookahead(filtered, parserHQLLookahead),
		uri:      uri,
	}, nil
}

type parserHQLTokens struct {
	reporter exc.Reporter
	ctx      context.Context
	uri      string
	// loc is the .Span.End of the last consumed token, so unexpected-EOF
	// errors carry a meaningful location.
	loc        hql.Location
	tokens     hql.Lookahead[*hql.Token]
	depth      int
	quasiDepth int
}

func (p *parserHQLTokens) report(code string, message string) {
	_ = p.reporter.Report(exc.New(exc.Location{
		URI:      p.uri,
		Location: p.loc,
	}, code, message))
}

func (p *parserHQLTokens) advance() {
	maybeToken := p.tokens.Lookahead(p.ctx, 0)
	if maybeToken.IsPresent() {
		p.loc = *maybeToken.Value().Span.End
	}
	_ = p.tokens.Next(p.ctx)
}

func (p *parserHQLTokens) peek() *hql.Token {
	maybeToken := p.tokens.Lookahead(p.ctx, 0)
	if !maybeToken.IsPresent() {
		return nil
	}
	return maybeToken.Value()
}

// ParseProgram parses every top-level form. The first structural error
// aborts the file and returns nil.
func (p *parserHQLTokens) ParseProgram() []hql.SExp {
	forms := []hql.SExp{}
	for p.peek() != nil {
		form := p.parseExpression()
		if form == nil {
			return nil
		}
		forms = append(forms, form)
	}
	return forms
}

func (p *parserHQLTokens) parseExpression() hql.SExp {
	t := p.peek()
	if t == nil {
		p.report(exc.CodeUnexpectedEOF, "unexpected EOF (expecting an expression)")
		return nil
	}
	switch t.Type {
	case hql.TokenTypeParenOpen:
		return p.parseList()
	case hql.TokenTypeBracketOpen:
		return p.parseVector()
	case hql.TokenTypeBraceOpen:
		return p.parseMap()
	case hql.TokenTypeHashBracketOpen:
		return p.parseSet()
	case hql.TokenTypeParenClose, hql.TokenTypeBracketClose, hql.TokenTypeBraceClose:
		p.report(exc.CodeUnexpectedToken, fmt.Sprintf("unexpected closing %q", t.Value))
		return nil
	case hql.TokenTypeString:
		p.advance()
		return hql.NewLiteral(t.Value, t.Span.Start)
	case hql.TokenTypeTemplate:
		p.advance()
		return p.parseTemplate(t)
	case hql.TokenTypeNumber:
		p.advance()
		return p.parseNumber(t)
	case hql.TokenTypeBigInt:
		p.advance()
		return &hql.Literal{Value: t.Value, BigInt: true, Loc: t.Span.Start}
	case hql.TokenTypeSymbol:
		p.advance()
		switch t.Value {
		case "true":
			return hql.NewLiteral(true, t.Span.Start)
		case "false":
			return hql.NewLiteral(false, t.Span.Start)
		case "nil", "null":
			return hql.NewLiteral(nil, t.Span.Start)
		}
		return hql.NewSymbol(t.Value, t.Span.Start)
	case hql.TokenTypeTypeAnnotation:
		p.advance()
		return hql.NewSymbol(t.Value, t.Span.Start)
	case hql.TokenTypeDot:
		p.advance()
		return hql.NewSymbol(".", t.Span.Start)
	case hql.TokenTypeColon:
		p.advance()
		return hql.NewSymbol(":", t.Span.Start)
	case hql.TokenTypeQuote:
		p.advance()
		return p.parseQuoted("quote", t)
	case hql.TokenTypeQuasiquote:
		p.advance()
		if p.quasiDepth >= maxQuasiquoteDepth {
			p.report(exc.CodeMaxQuasiquoteDepth, fmt.Sprintf("quasiquote nesting exceeds %d", maxQuasiquoteDepth))
			return nil
		}
		p.quasiDepth++
		defer func() { p.quasiDepth-- }()
		return p.parseQuoted("quasiquote", t)
	case hql.TokenTypeUnquote:
		p.advance()
		if p.quasiDepth == 0 {
			// Outside quasiquote the same character is bitwise NOT.
			return hql.NewSymbol("~", t.Span.Start)
		}
		return p.parseQuoted("unquote", t)
	case hql.TokenTypeUnquoteSplicing:
		p.advance()
		if p.quasiDepth == 0 {
			p.report(exc.CodeUnquoteOutsideQuasi, "unquote-splicing outside quasiquote")
			return nil
		}
		return p.parseQuoted("unquote-splicing", t)
	default:
		p.report(exc.CodeUnexpectedToken, fmt.Sprintf("unexpected %s", t))
		return nil
	}
}

func (p *parserHQLTokens) parseQuoted(head string, t *hql.Token) hql.SExp {
	inner := p.parseExpression()
	if inner == nil {
		return nil
	}
	return hql.NewList(t.Span.Start, hql.NewSymbol(head, t.Span.Start), inner)
}

func (p *parserHQLTokens) parseNumber(t *hql.Token) hql.SExp {
	text := strings.ReplaceAll(t.Value, "_", "")
	if v, err := strconv.ParseFloat(text, 64); err == nil {
		return hql.NewLiteral(v, t.Span.Start)
	}
	if v, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X"), 16, 64); err == nil && (strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X")) {
		return hql.NewLiteral(float64(v), t.Span.Start)
	}
	if v, err := strconv.ParseInt(text, 0, 64); err == nil {
		return hql.NewLiteral(float64(v), t.Span.Start)
	}
	p.report(exc.CodeInvalidNumber, fmt.Sprintf("invalid number literal %q", t.Value))
	return nil
}

// enterNested guards recursive entry into any delimited form.
func (p *parserHQLTokens) enterNested() bool {
	if p.depth >= maxParsingDepth {
		p.report(exc.CodeMaxDepthExceeded, fmt.Sprintf("nesting depth exceeds %d", maxParsingDepth))
		return false
	}
	p.depth++
	return true
}

func (p *parserHQLTokens) parseList() hql.SExp {
	open := p.peek()
	p.advance()
	if !p.enterNested() {
		return nil
	}
	defer func() { p.depth-- }()
	elements := []hql.SExp{}
	for {
		t := p.peek()
		if t == nil {
			p.report(exc.CodeUnterminatedList, "unterminated list (expecting \")\")")
			return nil
		}
		if t.Type == hql.TokenTypeParenClose {
			p.advance()
			break
		}
		el := p.parseExpression()
		if el == nil {
			return nil
		}
		elements = append(elements, el)
	}
	list := hql.NewList(open.Span.Start, elements...)
	if list.Head() == "import" {
		return p.validateImport(list)
	}
	return list
}

func (p *parserHQLTokens) parseVector() hql.SExp {
	open := p.peek()
	p.advance()
	if !p.enterNested() {
		return nil
	}
	defer func() { p.depth-- }()
	elements := []hql.SExp{hql.NewSymbol("vector", open.Span.Start)}
	for {
		t := p.peek()
		if t == nil {
			p.report(exc.CodeUnterminatedList, "unterminated vector (expecting \"]\")")
			return nil
		}
		if t.Type == hql.TokenTypeBracketClose {
			p.advance()
			break
		}
		el := p.parseExpression()
		if el == nil {
			return nil
		}
		elements = append(elements, el)
	}
	if len(elements) == 1 {
		return hql.NewList(open.Span.Start, hql.NewSymbol("empty-array", open.Span.Start))
	}
	return hql.NewList(open.Span.Start, elements...)
}

func (p *parserHQLTokens) parseSet() hql.SExp {
	open := p.peek()
	p.advance()
	if !p.enterNested() {
		return nil
	}
	defer func() { p.depth-- }()
	elements := []hql.SExp{hql.NewSymbol("hash-set", open.Span.Start)}
	for {
		t := p.peek()
		if t == nil {
			p.report(exc.CodeUnterminatedList, "unterminated set (expecting \"]\")")
			return nil
		}
		if t.Type == hql.TokenTypeBracketClose {
			p.advance()
			break
		}
		el := p.parseExpression()
		if el == nil {
			return nil
		}
		elements = append(elements, el)
	}
	return hql.NewList(open.Span.Start, elements...)
}

// parseMap lowers {...} to (hash-map k v ...). Three entry syntaxes: "k:"
// followed by a value, a bare symbol duplicated as its own value, and
// "...obj" spread (carried as a (spread obj) element).
func (p *parserHQLTokens) parseMap() hql.SExp {
	open := p.peek()
	p.advance()
	if !p.enterNested() {
		return nil
	}
	defer func() { p.depth-- }()
	elements := []hql.SExp{hql.NewSymbol("hash-map", open.Span.Start)}
	for {
		t := p.peek()
		if t == nil {
			p.report(exc.CodeUnterminatedList, "unterminated map (expecting \"}\")")
			return nil
		}
		if t.Type == hql.TokenTypeBraceClose {
			p.advance()
			break
		}
		switch {
		case t.Type == hql.TokenTypeSymbol && strings.HasPrefix(t.Value, "..."):
			p.advance()
			arg := strings.TrimPrefix(t.Value, "...")
			if arg == "" {
				p.report(exc.CodeUnexpectedToken, "spread in a map requires an identifier")
				return nil
			}
			elements = append(elements, hql.NewList(t.Span.Start,
				hql.NewSymbol("spread", t.Span.Start),
				hql.NewSymbol(arg, t.Span.Start),
			))
		case t.Type == hql.TokenTypeSymbol && t.Value == "&":
			// Rest binding in a destructuring map pattern.
			p.advance()
			name := p.peek()
			if name == nil || name.Type != hql.TokenTypeSymbol {
				p.report(exc.CodeUnexpectedToken, "\"&\" in a map requires an identifier")
				return nil
			}
			p.advance()
			elements = append(elements, hql.NewList(t.Span.Start,
				hql.NewSymbol("rest", t.Span.Start),
				hql.NewSymbol(name.Value, name.Span.Start),
			))
		case t.Type == hql.TokenTypeSymbol && strings.HasSuffix(t.Value, ":"):
			p.advance()
			key := strings.TrimSuffix(t.Value, ":")
			value := p.parseExpression()
			if value == nil {
				return nil
			}
			elements = append(elements, hql.NewLiteral(key, t.Span.Start), value)
		case t.Type == hql.TokenTypeSymbol:
			// Shorthand: the symbol is both key and value.
			p.advance()
			elements = append(elements,
				hql.NewLiteral(t.Value, t.Span.Start),
				hql.NewSymbol(t.Value, t.Span.Start),
			)
		case t.Type == hql.TokenTypeString:
			p.advance()
			value := p.parseExpression()
			if value == nil {
				return nil
			}
			elements = append(elements, hql.NewLiteral(t.Value, t.Span.Start), value)
		default:
			p.report(exc.CodeUnexpectedToken, fmt.Sprintf("unexpected %s in map literal (expecting a key)", t))
			return nil
		}
	}
	return hql.NewList(open.Span.Start, elements...)
}

// validateImport checks the shape of an import form. Resolution belongs to
// the module resolver; only structure is verified here.
//
//	(import "path")
//	(import name from "path")
//	(import [a b] from "path")
func (p *parserHQLTokens) validateImport(list *hql.List) hql.SExp {
	fail := func(msg string) hql.SExp {
		p.report(exc.CodeMalformedImport, msg)
		return nil
	}
	switch len(list.Elements) {
	case 2:
		if lit, ok := list.Elements[1].(*hql.Literal); !ok || !isStringValue(lit) {
			return fail("import of a bare module requires a string path")
		}
		return list
	case 4:
		from, ok := list.Elements[2].(*hql.Symbol)
		if !ok || from.Name != "from" {
			return fail(fmt.Sprintf("expected \"from\" in import, got %q", hql.Sprint(list.Elements[2])))
		}
		if lit, ok := list.Elements[3].(*hql.Literal); !ok || !isStringValue(lit) {
			return fail("import requires a string path after \"from\"")
		}
		switch target := list.Elements[1].(type) {
		case *hql.Symbol:
			return list
		case *hql.List:
			if target.Head() == "vector" || target.Head() == "empty-array" {
				return list
			}
			return fail("import target must be a name or a vector of names")
		default:
			return fail("import target must be a name or a vector of names")
		}
	default:
		return fail(fmt.Sprintf("import expects 1 or 3 forms, got %d", len(list.Elements)-1))
	}
}

func isStringValue(lit *hql.Literal) bool {
	_, ok := lit.Value.(string)
	return ok && !lit.BigInt
}

// parseTemplate splits a template literal into quasis and interpolated
// expressions, re-parsing each ${...} segment through a fresh lexer and
// parser. The result is (template-literal (quasis "a" "b" ...) expr ...).
func (p *parserHQLTokens) parseTemplate(t *hql.Token) hql.SExp {
	quasis := []hql.SExp{hql.NewSymbol("quasis", t.Span.Start)}
	exprs := []hql.SExp{}
	raw := t.Value
	current := &strings.Builder{}
	for i := 0; i < len(raw); {
		if strings.HasPrefix(raw[i:], "${") {
			depth := 1
			j := i + 2
			for ; j < len(raw) && depth > 0; j++ {
				switch raw[j] {
				case '{':
					depth++
				case '}':
					depth--
				}
			}
			if depth > 0 {
				p.report(exc.CodeUnterminatedString, "unterminated interpolation in template literal")
				return nil
			}
			inner := raw[i+2 : j-1]
			expr := p.parseSnippet(inner, t.Span.Start)
			if expr == nil {
				return nil
			}
			quasis = append(quasis, hql.NewLiteral(current.String(), t.Span.Start))
			current.Reset()
			exprs = append(exprs, expr)
			i = j
			continue
		}
		current.WriteByte(raw[i])
		i++
	}
	quasis = append(quasis, hql.NewLiteral(current.String(), t.Span.Start))
	elements := []hql.SExp{
		hql.NewSymbol("template-literal", t.Span.Start),
		hql.NewList(t.Span.Start, quasis...),
	}
	elements = append(elements, exprs...)
	return hql.NewList(t.Span.Start, elements...)
}

// parseSnippet runs the full lexer and parser over an interpolation segment.
func (p *parserHQLTokens) parseSnippet(source string, loc *hql.Location) hql.SExp {
	lexed := NewLexerHQL(p.reporter).Lex(p.ctx, source, p.uri)
	sub, err := NewParserHQL(p.reporter).PrepareParse(p.ctx, lexed, p.uri)
	if err != nil {
		p.report(exc.CodeUnknownFatal, err.Error())
		return nil
	}
	forms := sub.ParseProgram()
	if forms == nil {
		return nil
	}
	if len(forms) == 0 {
		p.report(exc.CodeUnexpectedToken, "empty interpolation in template literal")
		return nil
	}
	if len(forms) == 1 {
		return hql.WithPos(forms[0], loc)
	}
	elements := append([]hql.SExp{hql.NewSymbol("do", loc)}, forms...)
	return hql.WithPos(hql.NewList(loc, elements...), loc)
}

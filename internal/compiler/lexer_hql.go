// © 2024 HLVM Authors
//
// SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/hlvm-dev/hqlc/internal/exc"
	"github.com/hlvm-dev/hqlc/internal/hql"
	"github.com/hlvm-dev/hqlc/internal/iter"
	"github.com/hlvm-dev/hqlc/internal/optional"
)

const (
	lexerHQLLookahead = 8
	// stringPreviewLimit is how much of an unterminated string is echoed in
	// the diagnostic so it can be located in a large file.
	stringPreviewLimit = 30
)

// LexerHQL tokenizes HQL source text. Whitespace and commas are consumed and
// never emitted; comment tokens are emitted and filtered by the parser.
type LexerHQL struct {
	reporter exc.Reporter
}

func NewLexerHQL(reporter exc.Reporter) *LexerHQL {
	return &LexerHQL{reporter: reporter}
}

func (self *LexerHQL) Lex(ctx context.Context, source string, uri string) hql.Iterator[*hql.Token] {
	return &lexerHQLTokens{
		uri:      uri,
		body:     iter.NewLookahead(iter.NewUnicodeSource(source), lexerHQLLookahead),
		reporter: self.reporter,
		line:     1,
		col:      0,
		offset:   -1,
	}
}

type lexerHQLTokens struct {
	uri      string
	body     hql.Lookahead[hql.CodePoint]
	reporter exc.Reporter
	line     int32
	col      int32
	offset   int64
}

func (self *lexerHQLTokens) Next(ctx context.Context) optional.Optional[*hql.Token] {
	for point := self.next(ctx); point.IsPresent(); point = self.next(ctx) {
		r := rune(point.Value())
		start := self.mark()
		switch r {
		case 0x00:
			return optional.None[*hql.Token]()
		case '\n':
			self.newLine()
			continue
		case '\r', '\t', ' ', ',':
			continue // Whitespace and commas are insignificant.
		case '(':
			return self.token(start, hql.TokenTypeParenOpen, "(")
		case ')':
			return self.token(start, hql.TokenTypeParenClose, ")")
		case '[':
			return self.token(start, hql.TokenTypeBracketOpen, "[")
		case ']':
			return self.token(start, hql.TokenTypeBracketClose, "]")
		case '{':
			return self.token(start, hql.TokenTypeBraceOpen, "{")
		case '}':
			return self.token(start, hql.TokenTypeBraceClose, "}")
		case '#':
			if n := self.body.Lookahead(ctx, 1); n.IsPresent() && n.Value() == '[' {
				_ = self.next(ctx)
				return self.token(start, hql.TokenTypeHashBracketOpen, "#[")
			}
			return self.readSymbol(ctx, start, "#")
		case '\'':
			return self.token(start, hql.TokenTypeQuote, "'")
		case '`':
			// A backtick opening a list or vector reads as quasiquote; any
			// other backtick opens a template literal.
			if n := self.body.Lookahead(ctx, 1); n.IsPresent() && (n.Value() == '(' || n.Value() == '[') {
				return self.token(start, hql.TokenTypeQuasiquote, "`")
			}
			return self.readTemplate(ctx, start)
		case '~':
			if n := self.body.Lookahead(ctx, 1); n.IsPresent() && n.Value() == '@' {
				_ = self.next(ctx)
				return self.token(start, hql.TokenTypeUnquoteSplicing, "~@")
			}
			return self.token(start, hql.TokenTypeUnquote, "~")
		case '"':
			return self.readString(ctx, start)
		case ';':
			return self.readCommentLine(ctx, start)
		case ':':
			if n := self.body.Lookahead(ctx, 1); n.IsPresent() {
				if n.Value() == '{' {
					return self.readInlineObjectType(ctx, start)
				}
				if isSymbolStart(rune(n.Value())) {
					return self.readTypeAnnotation(ctx, start)
				}
			}
			return self.token(start, hql.TokenTypeColon, ":")
		case '.':
			return self.readDotForm(ctx, start)
		case '-', '+':
			if n := self.body.Lookahead(ctx, 1); n.IsPresent() && unicode.IsDigit(rune(n.Value())) {
				return self.readNumber(ctx, start, string(r))
			}
			return self.readSymbol(ctx, start, string(r))
		default:
			if unicode.IsDigit(r) {
				return self.readNumber(ctx, start, string(r))
			}
			if isSymbolStart(r) {
				return self.readSymbol(ctx, start, string(r))
			}
			e := self.exc(exc.CodeUnexpectedToken, fmt.Sprintf("unexpected character %q", r))
			_ = self.reporter.Report(e)
			return optional.None[*hql.Token]()
		}
	}
	return optional.None[*hql.Token]()
}

// readDotForm distinguishes spread "...", rest "...name", optional-chain
// method ".?name", plain method call ".name", and the bare dot.
func (self *lexerHQLTokens) readDotForm(ctx context.Context, start hql.Location) optional.Optional[*hql.Token] {
	n1 := self.body.Lookahead(ctx, 1)
	n2 := self.body.Lookahead(ctx, 2)
	if n1.IsPresent() && n1.Value() == '.' && n2.IsPresent() && n2.Value() == '.' {
		_ = self.next(ctx)
		_ = self.next(ctx)
		if n := self.body.Lookahead(ctx, 1); n.IsPresent() && isSymbolStart(rune(n.Value())) {
			return self.readSymbol(ctx, start, "...")
		}
		return self.token(start, hql.TokenTypeSymbol, "...")
	}
	if n1.IsPresent() && n1.Value() == '?' {
		_ = self.next(ctx)
		return self.readSymbol(ctx, start, ".?")
	}
	if n1.IsPresent() && isSymbolStart(rune(n1.Value())) {
		return self.readSymbol(ctx, start, ".")
	}
	return self.token(start, hql.TokenTypeDot, ".")
}

// readSymbol scans a symbol, tracking angle-bracket depth so generic
// parameter lists like identity<T,U> survive the comma, and merging a
// trailing type annotation when a ':' is immediately followed by more
// characters. A ':' followed by whitespace terminates the symbol as a map
// key.
func (self *lexerHQLTokens) readSymbol(ctx context.Context, start hql.Location, prefix string) optional.Optional[*hql.Token] {
	b := &strings.Builder{}
	b.WriteString(prefix)
	angleDepth := 0
	annotated := false
	for {
		n := self.body.Lookahead(ctx, 1)
		if !n.IsPresent() {
			break
		}
		r := rune(n.Value())
		if angleDepth > 0 {
			if r == '\n' {
				e := self.exc(exc.CodeInvalidTypeToken, fmt.Sprintf("unbalanced '<' in %q", b.String()))
				_ = self.reporter.Report(e)
				return optional.None[*hql.Token]()
			}
			if r == '<' {
				angleDepth++
			}
			if r == '>' {
				angleDepth--
			}
			_ = self.next(ctx)
			b.WriteRune(r)
			continue
		}
		switch {
		case r == '<':
			angleDepth++
			_ = self.next(ctx)
			b.WriteRune(r)
		case r == ':':
			_ = self.next(ctx)
			b.WriteRune(r)
			nn := self.body.Lookahead(ctx, 1)
			if !nn.IsPresent() || isWhitespace(rune(nn.Value())) || isDelimiter(rune(nn.Value())) {
				// "name:" followed by whitespace stays a map key.
				return self.token(start, hql.TokenTypeSymbol, b.String())
			}
			annotated = true
			if nn.Value() == '{' {
				if !self.consumeBalancedBraces(ctx, b) {
					return optional.None[*hql.Token]()
				}
			}
		case annotated && (r == '[' || r == ']'):
			// Array suffix on a merged annotation, e.g. x:number[].
			_ = self.next(ctx)
			b.WriteRune(r)
		case isSymbolChar(r):
			_ = self.next(ctx)
			b.WriteRune(r)
		default:
			return self.token(start, hql.TokenTypeSymbol, b.String())
		}
	}
	if angleDepth > 0 {
		e := self.exc(exc.CodeInvalidTypeToken, fmt.Sprintf("unbalanced '<' in %q", b.String()))
		_ = self.reporter.Report(e)
		return optional.None[*hql.Token]()
	}
	return self.token(start, hql.TokenTypeSymbol, b.String())
}

// readTypeAnnotation scans a standalone ":name<generics>[]" annotation. The
// leading colon is kept in the token value so keyword-like symbols such as
// :else survive as symbols in the parser.
func (self *lexerHQLTokens) readTypeAnnotation(ctx context.Context, start hql.Location) optional.Optional[*hql.Token] {
	b := &strings.Builder{}
	b.WriteString(":")
	angleDepth := 0
	for {
		n := self.body.Lookahead(ctx, 1)
		if !n.IsPresent() {
			break
		}
		r := rune(n.Value())
		switch {
		case r == '<':
			angleDepth++
		case r == '>':
			if angleDepth == 0 {
				return self.token(start, hql.TokenTypeTypeAnnotation, b.String())
			}
			angleDepth--
		case angleDepth > 0:
			if r == '\n' {
				e := self.exc(exc.CodeInvalidTypeToken, fmt.Sprintf("unbalanced '<' in %q", b.String()))
				_ = self.reporter.Report(e)
				return optional.None[*hql.Token]()
			}
		case r == '[' || r == ']':
			// Array suffix.
		case !isSymbolChar(r):
			return self.token(start, hql.TokenTypeTypeAnnotation, b.String())
		}
		_ = self.next(ctx)
		b.WriteRune(r)
	}
	if angleDepth > 0 {
		e := self.exc(exc.CodeInvalidTypeToken, fmt.Sprintf("unbalanced '<' in %q", b.String()))
		_ = self.reporter.Report(e)
		return optional.None[*hql.Token]()
	}
	return self.token(start, hql.TokenTypeTypeAnnotation, b.String())
}

// readInlineObjectType scans ":{...}" with balanced braces.
func (self *lexerHQLTokens) readInlineObjectType(ctx context.Context, start hql.Location) optional.Optional[*hql.Token] {
	b := &strings.Builder{}
	b.WriteString(":")
	if !self.consumeBalancedBraces(ctx, b) {
		return optional.None[*hql.Token]()
	}
	return self.token(start, hql.TokenTypeTypeAnnotation, b.String())
}

func (self *lexerHQLTokens) consumeBalancedBraces(ctx context.Context, b *strings.Builder) bool {
	depth := 0
	for {
		n := self.body.Lookahead(ctx, 1)
		if !n.IsPresent() {
			e := self.exc(exc.CodeInvalidTypeToken, "EOF inside inline object type")
			_ = self.reporter.Report(e)
			return false
		}
		r := rune(n.Value())
		_ = self.next(ctx)
		if r == '\n' {
			self.newLine()
		}
		b.WriteRune(r)
		if r == '{' {
			depth++
		}
		if r == '}' {
			depth--
			if depth == 0 {
				return true
			}
		}
	}
}

func (self *lexerHQLTokens) readString(ctx context.Context, start hql.Location) optional.Optional[*hql.Token] {
	b := &strings.Builder{}
	startLine := self.line
	for {
		n := self.next(ctx)
		if !n.IsPresent() {
			preview := b.String()
			if len(preview) > stringPreviewLimit {
				preview = preview[:stringPreviewLimit]
			}
			msg := fmt.Sprintf("unterminated string starting with %q", preview)
			if self.line > startLine {
				msg = msg + " (spans multiple lines)"
			}
			_ = self.reporter.Report(self.exc(exc.CodeUnterminatedString, msg))
			return optional.None[*hql.Token]()
		}
		r := rune(n.Value())
		switch r {
		case '"':
			return self.token(start, hql.TokenTypeString, b.String())
		case '\n':
			self.newLine()
			b.WriteRune(r)
		case '\\':
			e := self.next(ctx)
			if !e.IsPresent() {
				_ = self.reporter.Report(self.exc(exc.CodeUnterminatedString, "EOF in string escape"))
				return optional.None[*hql.Token]()
			}
			switch rune(e.Value()) {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			case 'r':
				b.WriteRune('\r')
			case '"':
				b.WriteRune('"')
			case '\\':
				b.WriteRune('\\')
			default:
				b.WriteRune('\\')
				b.WriteRune(rune(e.Value()))
			}
		default:
			b.WriteRune(r)
		}
	}
}

// readTemplate scans a backtick template literal, tracking ${ } depth so
// nested interpolation survives. The token value is the raw inner text; the
// parser re-parses interpolated segments.
func (self *lexerHQLTokens) readTemplate(ctx context.Context, start hql.Location) optional.Optional[*hql.Token] {
	b := &strings.Builder{}
	depth := 0
	for {
		n := self.next(ctx)
		if !n.IsPresent() {
			preview := b.String()
			if len(preview) > stringPreviewLimit {
				preview = preview[:stringPreviewLimit]
			}
			_ = self.reporter.Report(self.exc(exc.CodeUnterminatedString, fmt.Sprintf("unterminated template literal starting with %q", preview)))
			return optional.None[*hql.Token]()
		}
		r := rune(n.Value())
		switch r {
		case '`':
			if depth == 0 {
				return self.token(start, hql.TokenTypeTemplate, b.String())
			}
			b.WriteRune(r)
		case '$':
			b.WriteRune(r)
			if nn := self.body.Lookahead(ctx, 1); nn.IsPresent() && nn.Value() == '{' {
				_ = self.next(ctx)
				b.WriteRune('{')
				depth++
			}
		case '}':
			if depth > 0 {
				depth--
			}
			b.WriteRune(r)
		case '\n':
			self.newLine()
			b.WriteRune(r)
		case '\\':
			e := self.next(ctx)
			if !e.IsPresent() {
				_ = self.reporter.Report(self.exc(exc.CodeUnterminatedString, "EOF in template escape"))
				return optional.None[*hql.Token]()
			}
			b.WriteRune('\\')
			b.WriteRune(rune(e.Value()))
		default:
			b.WriteRune(r)
		}
	}
}

func (self *lexerHQLTokens) readCommentLine(ctx context.Context, start hql.Location) optional.Optional[*hql.Token] {
	b := &strings.Builder{}
	b.WriteString(";")
	for {
		n := self.body.Lookahead(ctx, 1)
		if !n.IsPresent() || n.Value() == '\n' {
			return self.token(start, hql.TokenTypeComment, b.String())
		}
		_ = self.next(ctx)
		b.WriteRune(rune(n.Value()))
	}
}

func (self *lexerHQLTokens) readNumber(ctx context.Context, start hql.Location, prefix string) optional.Optional[*hql.Token] {
	b := &strings.Builder{}
	b.WriteString(prefix)
	for {
		n := self.body.Lookahead(ctx, 1)
		if !n.IsPresent() {
			break
		}
		r := rune(n.Value())
		if !unicode.IsDigit(r) && !unicode.IsLetter(r) && r != '.' && r != '_' {
			// Exponent sign.
			if (r == '-' || r == '+') && endsWithExponent(b.String()) {
				_ = self.next(ctx)
				b.WriteRune(r)
				continue
			}
			break
		}
		_ = self.next(ctx)
		b.WriteRune(r)
	}
	text := b.String()
	if digits, ok := strings.CutSuffix(text, "n"); ok && isAllDigits(digits) {
		return self.token(start, hql.TokenTypeBigInt, digits)
	}
	if !validNumber(text) {
		_ = self.reporter.Report(self.exc(exc.CodeInvalidNumber, fmt.Sprintf("invalid number literal %q", text)))
		return optional.None[*hql.Token]()
	}
	return self.token(start, hql.TokenTypeNumber, text)
}

func (self *lexerHQLTokens) next(ctx context.Context) optional.Optional[hql.CodePoint] {
	n := self.body.Next(ctx)
	if n.IsPresent() {
		self.addCol(rune(n.Value()))
	}
	return n
}

func (self *lexerHQLTokens) exc(code string, message string) exc.Exception {
	return exc.New(exc.Location{URI: self.uri, Location: hql.Location{Line: self.line, Column: self.col, Offset: self.offset}}, code, message)
}

func (self *lexerHQLTokens) newLine() {
	self.line = self.line + 1
	self.col = 0
}

func (self *lexerHQLTokens) addCol(r rune) {
	self.col = self.col + 1
	self.offset = self.offset + int64(len(string(r)))
}

func (self *lexerHQLTokens) mark() hql.Location {
	return hql.Location{Line: self.line, Column: self.col, Offset: self.offset}
}

func (self *lexerHQLTokens) token(start hql.Location, kind hql.TokenType, value string) optional.Optional[*hql.Token] {
	return optional.Some(&hql.Token{
		Span: &hql.Span{
			Start: &start,
			End: &hql.Location{
				Line:   self.line,
				Column: self.col + 1,
				Offset: self.offset + 1,
			},
		},
		Type:  kind,
		Value: value,
	})
}

func (self *lexerHQLTokens) Close(ctx context.Context) error {
	return self.body.Close(ctx)
}

func isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == ','
}

func isDelimiter(r rune) bool {
	switch r {
	case '(', ')', '[', ']', '{', '}', '"', '`', '\'', ';':
		return true
	}
	return false
}

func isSymbolStart(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '_', '$', '*', '+', '-', '/', '=', '<', '>', '!', '?', '&', '%', '|', '^', '.':
		return true
	}
	return false
}

func isSymbolChar(r rune) bool {
	return isSymbolStart(r) || r == '#' || r == '@'
}

func endsWithExponent(s string) bool {
	return strings.HasSuffix(s, "e") || strings.HasSuffix(s, "E")
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func validNumber(s string) bool {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") ||
		strings.HasPrefix(s, "0b") || strings.HasPrefix(s, "0o") {
		return len(s) > 2
	}
	seenDot := false
	seenExp := false
	for i, r := range s {
		switch {
		case unicode.IsDigit(r):
		case r == '-' || r == '+':
			if i != 0 && !endsWithExponent(s[:i]) {
				return false
			}
		case r == '.':
			if seenDot || seenExp {
				return false
			}
			seenDot = true
		case r == 'e' || r == 'E':
			if seenExp {
				return false
			}
			seenExp = true
		case r == '_':
		default:
			return false
		}
	}
	return true
}

// © 2024 HLVM Authors
//
// SPDX-License-Identifier: Apache-2.0

package hql

import (
	"context"
	"fmt"

	"github.com/hlvm-dev/hqlc/internal/optional"
)

type Closer interface {
	Close(ctx context.Context) error
}

type CodePoint uint32

type Iterator[T any] interface {
	Next(ctx context.Context) optional.Optional[T]
	Closer
}

type Lookahead[T any] interface {
	Iterator[T]
	Lookahead(ctx context.Context, n uint8) optional.Optional[T]
}

type Filter[T any] interface {
	Keep(ctx context.Context, v T) bool
}

// Location is a single point in a source file. Lines and columns are
// 1-based; Offset is a 0-based byte offset.
type Location struct {
	Line   int32
	Column int32
	Offset int64
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// Span covers a half-open range of source text.
type Span struct {
	Start *Location
	End   *Location
}

type Token struct {
	Span  *Span
	Type  TokenType
	Value string
}

func (t *Token) String() string {
	return fmt.Sprintf("%s(%q)", t.Type, t.Value)
}

type TokenType uint16

const (
	TokenTypeUnknown         TokenType = 0
	TokenTypeParenOpen       TokenType = 1
	TokenTypeParenClose      TokenType = 2
	TokenTypeBracketOpen     TokenType = 3
	TokenTypeBracketClose    TokenType = 4
	TokenTypeBraceOpen       TokenType = 5
	TokenTypeBraceClose      TokenType = 6
	TokenTypeHashBracketOpen TokenType = 7
	TokenTypeString          TokenType = 8
	TokenTypeTemplate        TokenType = 9
	TokenTypeNumber          TokenType = 10
	TokenTypeBigInt          TokenType = 11
	TokenTypeSymbol          TokenType = 12
	TokenTypeQuote           TokenType = 13
	TokenTypeQuasiquote      TokenType = 14
	TokenTypeUnquote         TokenType = 15
	TokenTypeUnquoteSplicing TokenType = 16
	TokenTypeDot             TokenType = 17
	TokenTypeColon           TokenType = 18
	TokenTypeComma           TokenType = 19
	TokenTypeComment         TokenType = 20
	TokenTypeWhitespace      TokenType = 21
	TokenTypeTypeAnnotation  TokenType = 22
	TokenTypeEOF             TokenType = 23
)

func (t TokenType) String() string {
	switch t {
	case TokenTypeParenOpen:
		return "paren-open"
	case TokenTypeParenClose:
		return "paren-close"
	case TokenTypeBracketOpen:
		return "bracket-open"
	case TokenTypeBracketClose:
		return "bracket-close"
	case TokenTypeBraceOpen:
		return "brace-open"
	case TokenTypeBraceClose:
		return "brace-close"
	case TokenTypeHashBracketOpen:
		return "hash-bracket-open"
	case TokenTypeString:
		return "string"
	case TokenTypeTemplate:
		return "template"
	case TokenTypeNumber:
		return "number"
	case TokenTypeBigInt:
		return "bigint"
	case TokenTypeSymbol:
		return "symbol"
	case TokenTypeQuote:
		return "quote"
	case TokenTypeQuasiquote:
		return "quasiquote"
	case TokenTypeUnquote:
		return "unquote"
	case TokenTypeUnquoteSplicing:
		return "unquote-splicing"
	case TokenTypeDot:
		return "dot"
	case TokenTypeColon:
		return "colon"
	case TokenTypeComma:
		return "comma"
	case TokenTypeComment:
		return "comment"
	case TokenTypeWhitespace:
		return "whitespace"
	case TokenTypeTypeAnnotation:
		return "type-annotation"
	case TokenTypeEOF:
		return "eof"
	default:
		return fmt.Sprintf("unknown-%d", uint16(t))
	}
}

// © 2024 HLVM Authors
//
// SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hlvm-dev/hqlc/internal/exc"
	"github.com/hlvm-dev/hqlc/internal/hql"
	"github.com/hlvm-dev/hqlc/internal/iter"
)

type lexed struct {
	kind  hql.TokenType
	value string
}

func lexHQL(t *testing.T, source string) ([]lexed, []exc.Exception) {
	t.Helper()
	ctx := context.Background()
	rep := exc.NewReporter(nil)
	tokens := iter.Collect(ctx, NewLexerHQL(rep).Lex(ctx, source, "/test.hql"))
	out := make([]lexed, 0, len(tokens))
	for _, token := range tokens {
		if token.Type == hql.TokenTypeWhitespace || token.Type == hql.TokenTypeComment {
			continue
		}
		out = append(out, lexed{kind: token.Type, value: token.Value})
	}
	return out, rep.Reported()
}

func TestLexerHQL(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected []lexed
	}{
		{
			name:  "flat list",
			input: "(+ 1 2.5)",
			expected: []lexed{
				{hql.TokenTypeParenOpen, "("},
				{hql.TokenTypeSymbol, "+"},
				{hql.TokenTypeNumber, "1"},
				{hql.TokenTypeNumber, "2.5"},
				{hql.TokenTypeParenClose, ")"},
			},
		},
		{
			name:  "vector and set",
			input: "[1] #[2]",
			expected: []lexed{
				{hql.TokenTypeBracketOpen, "["},
				{hql.TokenTypeNumber, "1"},
				{hql.TokenTypeBracketClose, "]"},
				{hql.TokenTypeHashBracketOpen, "#["},
				{hql.TokenTypeNumber, "2"},
				{hql.TokenTypeBracketClose, "]"},
			},
		},
		{
			name:  "bigint keeps digits",
			input: "123n",
			expected: []lexed{
				{hql.TokenTypeBigInt, "123"},
			},
		},
		{
			name:  "string with escapes",
			input: `"a\nb"`,
			expected: []lexed{
				{hql.TokenTypeString, "a\nb"},
			},
		},
		{
			name:  "backtick before paren is quasiquote",
			input: "`(a)",
			expected: []lexed{
				{hql.TokenTypeQuasiquote, "`"},
				{hql.TokenTypeParenOpen, "("},
				{hql.TokenTypeSymbol, "a"},
				{hql.TokenTypeParenClose, ")"},
			},
		},
		{
			name:  "backtick before text is a template literal",
			input: "`hi ${name}`",
			expected: []lexed{
				{hql.TokenTypeTemplate, "hi ${name}"},
			},
		},
		{
			name:  "quote and unquote forms",
			input: "'a ~b ~@c",
			expected: []lexed{
				{hql.TokenTypeQuote, "'"},
				{hql.TokenTypeSymbol, "a"},
				{hql.TokenTypeUnquote, "~"},
				{hql.TokenTypeSymbol, "b"},
				{hql.TokenTypeUnquoteSplicing, "~@"},
				{hql.TokenTypeSymbol, "c"},
			},
		},
		{
			name:  "annotation merges when no whitespace follows the colon",
			input: "x:number",
			expected: []lexed{
				{hql.TokenTypeSymbol, "x:number"},
			},
		},
		{
			name:  "map key stays separate when whitespace follows the colon",
			input: "x: 1",
			expected: []lexed{
				{hql.TokenTypeSymbol, "x:"},
				{hql.TokenTypeNumber, "1"},
			},
		},
		{
			name:  "generic annotation balances angle brackets across commas",
			input: "f:Map<string,number>",
			expected: []lexed{
				{hql.TokenTypeSymbol, "f:Map<string,number>"},
			},
		},
		{
			name:  "array annotation",
			input: "xs:number[]",
			expected: []lexed{
				{hql.TokenTypeSymbol, "xs:number[]"},
			},
		},
		{
			name:  "spread and rest",
			input: "...xs ...",
			expected: []lexed{
				{hql.TokenTypeSymbol, "...xs"},
				{hql.TokenTypeSymbol, "..."},
			},
		},
		{
			name:  "optional chain method",
			input: ".?name",
			expected: []lexed{
				{hql.TokenTypeSymbol, ".?name"},
			},
		},
		{
			name:  "commas are insignificant",
			input: "[1, 2]",
			expected: []lexed{
				{hql.TokenTypeBracketOpen, "["},
				{hql.TokenTypeNumber, "1"},
				{hql.TokenTypeNumber, "2"},
				{hql.TokenTypeBracketClose, "]"},
			},
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			tokens, reported := lexHQL(t, testCase.input)
			require.Empty(t, reported)
			require.Equal(t, testCase.expected, tokens)
		})
	}
}

func TestLexerHQLUnterminatedString(t *testing.T) {
	t.Parallel()

	_, reported := lexHQL(t, "(def s \"this string never ends and keeps\ngoing")
	require.Len(t, reported, 1)
	require.Equal(t, exc.CodeUnterminatedString, reported[0].Code())
	require.Contains(t, reported[0].Message(), "this string never ends and ke")
	require.Contains(t, reported[0].Message(), "spans multiple lines")
}

func TestLexerHQLBadNumber(t *testing.T) {
	t.Parallel()

	_, reported := lexHQL(t, "1.2.3")
	require.Len(t, reported, 1)
	require.Equal(t, exc.CodeInvalidNumber, reported[0].Code())
}

// © 2024 HLVM Authors
//
// SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hlvm-dev/hqlc/internal/exc"
	"github.com/hlvm-dev/hqlc/internal/hql"
)

func parseHQL(t *testing.T, source string) ([]hql.SExp, []exc.Exception) {
	t.Helper()
	ctx := context.Background()
	rep := exc.NewReporter(nil)
	tokens := NewLexerHQL(rep).Lex(ctx, source, "/test.hql")
	parser, err := NewParserHQL(rep).PrepareParse(ctx, tokens, "/test.hql")
	require.Nil(t, err)
	return parser.ParseProgram(), rep.Reported()
}

func TestParserHQL(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "flat list",
			input:    "(+ 1 2)",
			expected: "(+ 1 2)",
		},
		{
			name:     "vector lowers to vector form",
			input:    "[1 2 3]",
			expected: "(vector 1 2 3)",
		},
		{
			name:     "empty vector",
			input:    "[]",
			expected: "(empty-array)",
		},
		{
			name:     "set lowers to hash-set",
			input:    "#[1 2]",
			expected: "(hash-set 1 2)",
		},
		{
			name:     "map with explicit keys",
			input:    "{name: \"ada\" age: 36}",
			expected: `(hash-map "name" "ada" "age" 36)`,
		},
		{
			name:     "map shorthand duplicates the symbol",
			input:    "{name age}",
			expected: `(hash-map "name" name "age" age)`,
		},
		{
			name:     "map spread",
			input:    "{...base x: 1}",
			expected: `(hash-map (spread base) "x" 1)`,
		},
		{
			name:     "map rest binding",
			input:    "{x & others}",
			expected: `(hash-map "x" x (rest others))`,
		},
		{
			name:     "quote wraps the next form",
			input:    "'(a b)",
			expected: "(quote (a b))",
		},
		{
			name:     "quasiquote with unquote and splicing",
			input:    "`(a ~b ~@cs)",
			expected: "(quasiquote (a (unquote b) (unquote-splicing cs)))",
		},
		{
			name:     "unquote at depth zero degrades to bitwise not",
			input:    "(~ x)",
			expected: "(~ x)",
		},
		{
			name:     "nested forms",
			input:    "(defn add [a b] (+ a b))",
			expected: "(defn add (vector a b) (+ a b))",
		},
		{
			name:     "negative and float numbers",
			input:    "(-1 2.5)",
			expected: "(-1 2.5)",
		},
		{
			name:     "hex number",
			input:    "0xff",
			expected: "255",
		},
		{
			name:     "import of bare module",
			input:    `(import "react")`,
			expected: `(import "react")`,
		},
		{
			name:     "import with names",
			input:    `(import [a b] from "./lib")`,
			expected: `(import (vector a b) from "./lib")`,
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			forms, reported := parseHQL(t, testCase.input)
			require.Empty(t, reported)
			require.Len(t, forms, 1)
			require.Equal(t, testCase.expected, hql.Sprint(forms[0]))
		})
	}
}

func TestParserHQLTemplate(t *testing.T) {
	t.Parallel()

	forms, reported := parseHQL(t, "`sum is ${(+ a b)}!`")
	require.Empty(t, reported)
	require.Len(t, forms, 1)
	require.Equal(t, `(template-literal (quasis "sum is " "!") (+ a b))`, hql.Sprint(forms[0]))
}

func TestParserHQLErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		input string
		code  string
	}{
		{
			name:  "unterminated list",
			input: "(a (b c)",
			code:  exc.CodeUnterminatedList,
		},
		{
			name:  "unterminated vector",
			input: "[1 2",
			code:  exc.CodeUnterminatedList,
		},
		{
			name:  "unexpected closing delimiter",
			input: ") a",
			code:  exc.CodeUnexpectedToken,
		},
		{
			name:  "splicing outside quasiquote",
			input: "(f ~@xs)",
			code:  exc.CodeUnquoteOutsideQuasi,
		},
		{
			name:  "misspelled from keyword",
			input: `(import [a] form "./lib")`,
			code:  exc.CodeMalformedImport,
		},
		{
			name:  "import path must be a string",
			input: "(import [a] from lib)",
			code:  exc.CodeMalformedImport,
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			forms, reported := parseHQL(t, testCase.input)
			require.Nil(t, forms)
			require.NotEmpty(t, reported)
			require.Equal(t, testCase.code, reported[0].Code())
		})
	}
}

func TestParserHQLDepthGuard(t *testing.T) {
	t.Parallel()

	depth := maxParsingDepth + 1
	input := strings.Repeat("(", depth) + strings.Repeat(")", depth)
	forms, reported := parseHQL(t, input)
	require.Nil(t, forms)
	require.NotEmpty(t, reported)
	require.Equal(t, exc.CodeMaxDepthExceeded, reported[0].Code())
}

func TestParserHQLQuasiquoteDepthGuard(t *testing.T) {
	t.Parallel()

	depth := maxQuasiquoteDepth + 1
	input := strings.Repeat("`(", depth) + "x" + strings.Repeat(")", depth)
	forms, reported := parseHQL(t, input)
	require.Nil(t, forms)
	require.NotEmpty(t, reported)
	require.Equal(t, exc.CodeMaxQuasiquoteDepth, reported[0].Code())
}

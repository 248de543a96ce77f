// © 2024 HLVM Authors
//
// SPDX-License-Identifier: Apache-2.0

package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hlvm-dev/hqlc/internal/exc"
	"github.com/hlvm-dev/hqlc/internal/hql"
)

// parseTestPattern parses one source form and feeds it through the pattern
// compiler.
func parseTestPattern(t *testing.T, source string) (Pattern, error) {
	t.Helper()
	forms, reported := parseHQL(t, source)
	require.Empty(t, reported)
	require.Len(t, forms, 1)
	require.True(t, CouldBePattern(forms[0]))
	return ParsePattern("/test.hql", forms[0])
}

func TestParsePattern(t *testing.T) {
	t.Parallel()

	t.Run("symbol becomes identifier", func(t *testing.T) {
		t.Parallel()
		p, err := parseTestPattern(t, "x")
		require.Nil(t, err)
		require.Equal(t, &PatternIdentifier{Name: "x"}, p)
	})

	t.Run("skip and rest round-trip", func(t *testing.T) {
		t.Parallel()
		p, err := parseTestPattern(t, "[x _ & rest]")
		require.Nil(t, err)
		require.Equal(t, &PatternArray{
			Elements: []Pattern{
				&PatternIdentifier{Name: "x"},
				&PatternSkip{},
				&PatternRest{Argument: &PatternIdentifier{Name: "rest"}},
			},
		}, p)
	})

	t.Run("defaults attach to the preceding element", func(t *testing.T) {
		t.Parallel()
		p, err := parseTestPattern(t, "[a (= 1) b]")
		require.Nil(t, err)
		arr, ok := p.(*PatternArray)
		require.True(t, ok)
		require.Len(t, arr.Elements, 2)
		a, ok := arr.Elements[0].(*PatternIdentifier)
		require.True(t, ok)
		require.Equal(t, "a", a.Name)
		require.Equal(t, "1", hql.Sprint(a.Default))
		require.Equal(t, &PatternIdentifier{Name: "b"}, arr.Elements[1])
	})

	t.Run("nested patterns compose", func(t *testing.T) {
		t.Parallel()
		p, err := parseTestPattern(t, "[[a b] {x y}]")
		require.Nil(t, err)
		arr, ok := p.(*PatternArray)
		require.True(t, ok)
		require.Len(t, arr.Elements, 2)
		inner, ok := arr.Elements[0].(*PatternArray)
		require.True(t, ok)
		require.Len(t, inner.Elements, 2)
		obj, ok := arr.Elements[1].(*PatternObject)
		require.True(t, ok)
		require.Len(t, obj.Properties, 2)
		require.Equal(t, "x", obj.Properties[0].Key)
		require.Equal(t, "y", obj.Properties[1].Key)
	})

	t.Run("object pattern with rest succeeds", func(t *testing.T) {
		t.Parallel()
		p, err := parseTestPattern(t, "{x y & rest}")
		require.Nil(t, err)
		obj, ok := p.(*PatternObject)
		require.True(t, ok)
		require.Len(t, obj.Properties, 2)
		require.NotNil(t, obj.Rest)
		require.Equal(t, "rest", obj.Rest.Name)
	})

	t.Run("object pattern renames through explicit keys", func(t *testing.T) {
		t.Parallel()
		p, err := parseTestPattern(t, "{first: f}")
		require.Nil(t, err)
		obj, ok := p.(*PatternObject)
		require.True(t, ok)
		require.Equal(t, []PatternObjectProperty{
			{Key: "first", Value: &PatternIdentifier{Name: "f"}},
		}, obj.Properties)
	})
}

func TestParsePatternErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		input string
	}{
		{
			name:  "rest not in final position",
			input: "[x & rest y]",
		},
		{
			name:  "rest without identifier",
			input: "[x & 1]",
		},
		{
			name:  "literal in array pattern",
			input: "[x 1]",
		},
		{
			name:  "skip cannot carry a default",
			input: "[_ (= 1)]",
		},
		{
			name:  "dangling default",
			input: "[(= 1)]",
		},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			_, err := parseTestPattern(t, testCase.input)
			require.NotNil(t, err)
			ex, ok := err.(exc.Exception)
			require.True(t, ok)
			require.Equal(t, exc.CodeInvalidPattern, ex.Code())
		})
	}

	t.Run("object key without value", func(t *testing.T) {
		t.Parallel()

		form := hql.NewList(nil, hql.NewSymbol("hash-map", nil), hql.NewLiteral("a", nil))
		_, err := ParsePattern("/test.hql", form)
		require.NotNil(t, err)
		ex, ok := err.(exc.Exception)
		require.True(t, ok)
		require.Equal(t, exc.CodeInvalidPattern, ex.Code())
	})
}

// © 2024 HLVM Authors
//
// SPDX-License-Identifier: Apache-2.0

package iter

import (
	"context"
	"unicode/utf8"

	"github.com/hlvm-dev/hqlc/internal/hql"
	"github.com/hlvm-dev/hqlc/internal/optional"
)

// NewUnicodeSource converts raw source text into an iterator of code points.
// Invalid UTF-8 sequences decode as utf8.RuneError, one byte at a time.
func NewUnicodeSource(src string) hql.Iterator[hql.CodePoint] {
	return &unicodeSource{src: src}
}

type unicodeSource struct {
	src    string
	offset int
}

func (s *unicodeSource) Next(ctx context.Context) optional.Optional[hql.CodePoint] {
	if s.offset >= len(s.src) {
		return optional.None[hql.CodePoint]()
	}
	r, size := utf8.DecodeRuneInString(s.src[s.offset:])
	s.offset += size
	return optional.Some(hql.CodePoint(r))
}

func (s *unicodeSource) Close(ctx context.Context) error {
	return nil
}

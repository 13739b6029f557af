// Copyright 2026 The Recall Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"unicode"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// fzf's matcher scores against bonus tables that algo.Init populates;
// without this one-time setup FuzzyMatchV2 misses on mixed-case text.
// "default" is fzf's own default scoring scheme.
func init() {
	algo.Init("default")
}

// FuzzyResult is the outcome of matching a pattern against one
// candidate string. Score is zero for no match; Positions are the
// matched character indexes, for highlighting.
type FuzzyResult struct {
	Score     int
	Positions []int
}

// fuzzyMatch scores pattern against text using fzf's matcher,
// case-insensitively. An empty pattern matches everything with a
// minimal positive score. slab may be nil; passing one reused across
// calls avoids per-call allocation when filtering a long list.
func fuzzyMatch(text string, pattern []rune, slab *util.Slab) FuzzyResult {
	if len(pattern) == 0 {
		return FuzzyResult{Score: 1}
	}

	// fzf expects a pre-lowercased pattern in case-insensitive mode.
	lowered := make([]rune, len(pattern))
	for index, r := range pattern {
		lowered[index] = unicode.ToLower(r)
	}

	chars := util.ToChars([]byte(text))
	result, positions := algo.FuzzyMatchV2(false, true, true, &chars, lowered, true, slab)
	if result.Score <= 0 {
		return FuzzyResult{}
	}

	matched := FuzzyResult{Score: result.Score}
	if positions != nil {
		matched.Positions = *positions
	} else {
		for index := result.Start; index < result.End; index++ {
			matched.Positions = append(matched.Positions, index)
		}
	}
	return matched
}

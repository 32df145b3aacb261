// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package dedupe

import "slices"

// Rule identifies which overlap rule merged two texts.
type Rule int

const (
	RuleNone Rule = iota
	// RuleTailHead: the accumulated tail equals the candidate head.
	RuleTailHead
	// RuleHeadTail: the accumulated head equals the candidate tail.
	RuleHeadTail
	// RuleContainment: one text contains the other.
	RuleContainment
	// RuleWindow: the accumulated tail window occurs inside the candidate.
	// The shared span is not removed, so the merged text repeats it.
	RuleWindow
)

func (r Rule) String() string {
	switch r {
	case RuleTailHead:
		return "tail-head"
	case RuleHeadTail:
		return "head-tail"
	case RuleContainment:
		return "containment"
	case RuleWindow:
		return "window"
	default:
		return "none"
	}
}

// mergeWords applies the overlap rules in order and returns the merged word
// sequence and the rule that fired, or RuleNone.
func mergeWords(acc, candidate []string, window int) ([]string, Rule) {
	if k := tailHeadOverlap(acc, candidate, window); k > 0 {
		return concat(acc, candidate[k:]), RuleTailHead
	}
	if k := tailHeadOverlap(candidate, acc, window); k > 0 {
		return concat(candidate, acc[k:]), RuleHeadTail
	}
	// Containment has no minimum length.
	if slices.Equal(acc, candidate) || indexOf(acc, candidate) >= 0 {
		return acc, RuleContainment
	}
	if indexOf(candidate, acc) >= 0 {
		return slices.Clone(candidate), RuleContainment
	}
	if len(acc) >= window && indexOf(candidate, acc[len(acc)-window:]) >= 0 {
		return concat(acc, candidate), RuleWindow
	}
	return nil, RuleNone
}

// tailHeadOverlap returns the longest k >= window such that the last k words
// of a equal the first k words of b, or 0.
func tailHeadOverlap(a, b []string, window int) int {
	for k := min(len(a), len(b)); k >= window; k-- {
		if slices.Equal(a[len(a)-k:], b[:k]) {
			return k
		}
	}
	return 0
}

// indexOf returns the first index of needle as a contiguous run in haystack, or -1.
func indexOf(haystack, needle []string) int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if slices.Equal(haystack[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

func concat(a, b []string) []string {
	merged := make([]string, 0, len(a)+len(b))
	merged = append(merged, a...)
	return append(merged, b...)
}

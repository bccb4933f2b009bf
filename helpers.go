package ics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// FoldLength is the maximum number of octets on a serialized line,
// excluding the line break.
const FoldLength = 75

// trimUTF8StringUpTo returns the longest prefix of s that fits in maxLength
// bytes without splitting a rune.
func trimUTF8StringUpTo(maxLength int, s string) string {
	length := 0
	for _, r := range s {
		newLength := length + utf8.RuneLen(r)
		if newLength > maxLength {
			break
		}
		length = newLength
	}
	return s[:length]
}

// FoldLine splits a content line into chunks of at most FoldLength octets.
// Continuation lines start with a single space.
func FoldLine(line string, newLine string) string {
	return foldLineAt(line, newLine, FoldLength)
}

func foldLineAt(line string, newLine string, length int) string {
	if newLine == "" {
		newLine = string(WithNewLineWindows)
	}
	if length <= 0 {
		return line
	}
	b := &strings.Builder{}
	first := true
	for len(line) > 0 {
		l := trimUTF8StringUpTo(length, line)
		if l == "" {
			// a single rune wider than the fold length
			_, size := utf8.DecodeRuneInString(line)
			l = line[:size]
		}
		if !first {
			b.WriteString(newLine)
			b.WriteString(" ")
		}
		b.WriteString(l)
		line = line[len(l):]
		first = false
	}
	return b.String()
}

// UnfoldLines joins folded physical lines into logical lines.  Blank
// lines are dropped.
func UnfoldLines(text string) []string {
	var lines []string
	cs := NewCalendarStream(strings.NewReader(text))
	for {
		l, err := cs.ReadLine()
		if l != nil && len(*l) > 0 {
			lines = append(lines, string(*l))
		}
		if err != nil {
			return lines
		}
	}
}

// unescapedIndexOf finds search in s starting at pos, skipping matches that
// are preceded by a backslash.
func unescapedIndexOf(s, search string, pos int) int {
	for pos <= len(s) {
		i := strings.Index(s[pos:], search)
		if i < 0 {
			return -1
		}
		i += pos
		if i > 0 && s[i-1] == '\\' {
			pos = i + 1
			continue
		}
		return i
	}
	return -1
}

// splitUnescaped splits s on every unescaped occurrence of delim.
func splitUnescaped(s, delim string) []string {
	var r []string
	last := 0
	for {
		i := unescapedIndexOf(s, delim, last)
		if i < 0 {
			break
		}
		r = append(r, s[last:i])
		last = i + len(delim)
	}
	return append(r, s[last:])
}

// binsearchInsert returns the index at which seek should be inserted to
// keep list sorted according to cmp.  When an equal element exists its
// index is returned.
func binsearchInsert[T any](list []T, seek T, cmp func(a, b T) int) int {
	if len(list) == 0 {
		return 0
	}
	low, high := 0, len(list)-1
	mid, c := 0, 0
	for low <= high {
		mid = low + (high-low)/2
		c = cmp(seek, list[mid])
		switch {
		case c < 0:
			high = mid - 1
		case c > 0:
			low = mid + 1
		default:
			return mid
		}
	}
	if c > 0 {
		return mid + 1
	}
	return mid
}

// insertSorted inserts v into the sorted list.
func insertSorted[T any](list []T, v T, cmp func(a, b T) int) []T {
	i := binsearchInsert(list, v, cmp)
	list = append(list, v)
	copy(list[i+1:], list[i:])
	list[i] = v
	return list
}

// strictParseInt parses a base 10 integer, failing on anything that is not
// entirely numeric.
func strictParseInt(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("could not extract integer from %q: %w", s, err)
	}
	return v, nil
}

// lenientParseInt mirrors parseInt: it reads the leading integer and falls
// back to 0 when there is none.
func lenientParseInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	v, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return v
}

func pad2(v int) string {
	if v < 0 {
		return "-" + pad2(-v)
	}
	if v < 10 {
		return "0" + strconv.Itoa(v)
	}
	return strconv.Itoa(v)
}

func pad4(v int) string {
	s := strconv.Itoa(v)
	for len(s) < 4 {
		s = "0" + s
	}
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func containsInt(list []int, v int) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}

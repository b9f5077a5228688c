package parser

import (
	"strings"
)

// Line is one logical source line with its 1-based position in the file.
// Blank lines and comment lines never make it out of the splitter.
type Line struct {
	Text string
	Num  int
}

// SplitLines breaks script source into trimmed logical lines, dropping blank
// lines and // comments. A trailing comment outside of quotes is stripped
// from the line that carries it.
func SplitLines(src string) []Line {
	var out []Line
	for i, raw := range strings.Split(src, "\n") {
		text := strings.TrimSpace(stripComment(raw))
		if text == "" {
			continue
		}
		out = append(out, Line{Text: text, Num: i + 1})
	}
	return out
}

func stripComment(s string) string {
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuote = !inQuote
		case '/':
			if !inQuote && i+1 < len(s) && s[i+1] == '/' {
				return s[:i]
			}
		}
	}
	return s
}

// braceDelta counts { minus } on a line, ignoring braces inside quotes.
func braceDelta(s string) int {
	delta := 0
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuote = !inQuote
		case '{':
			if !inQuote {
				delta++
			}
		case '}':
			if !inQuote {
				delta--
			}
		}
	}
	return delta
}

// collectBody gathers the body of a block opened on lines[start]. The opener
// is assumed to leave exactly one brace pending regardless of its own net
// delta, which makes "} else {" lines valid openers too. Returns the body
// lines, the index of the line carrying the closing brace, and whether the
// block was terminated at all.
func collectBody(lines []Line, start int) (body []Line, closeIdx int, ok bool) {
	depth := 1
	for i := start + 1; i < len(lines); i++ {
		depth += braceDelta(lines[i].Text)
		if depth <= 0 {
			return lines[start+1 : i], i, true
		}
	}
	return nil, len(lines), false
}

// splitTop splits s on sep occurrences at paren depth zero and outside
// quotes. Used for argument lists and for-header fields.
func splitTop(s string, sep byte) []string {
	var parts []string
	depth := 0
	inQuote := false
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuote = !inQuote
		case '(', '[':
			if !inQuote {
				depth++
			}
		case ')', ']':
			if !inQuote {
				depth--
			}
		case sep:
			if !inQuote && depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}

// indexTop finds the first occurrence of op at paren depth zero, outside
// quotes, or -1.
func indexTop(s, op string) int {
	depth := 0
	inQuote := false
	for i := 0; i+len(op) <= len(s); i++ {
		switch s[i] {
		case '"':
			inQuote = !inQuote
			continue
		case '(':
			if !inQuote {
				depth++
			}
			continue
		case ')':
			if !inQuote {
				depth--
			}
			continue
		}
		if !inQuote && depth == 0 && s[i:i+len(op)] == op {
			return i
		}
	}
	return -1
}

// fields splits a statement into whitespace-separated words, honoring quotes
// and bracketed/parenthesized groups so that an array literal or a call
// argument list stays one field.
func fields(s string) []string {
	var out []string
	var cur strings.Builder
	depth := 0
	inQuote := false
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '"':
			inQuote = !inQuote
			cur.WriteByte(ch)
		case !inQuote && (ch == '(' || ch == '['):
			depth++
			cur.WriteByte(ch)
		case !inQuote && (ch == ')' || ch == ']'):
			depth--
			cur.WriteByte(ch)
		case !inQuote && depth == 0 && (ch == ' ' || ch == '\t'):
			flush()
		default:
			cur.WriteByte(ch)
		}
	}
	flush()
	return out
}

// unquote strips one layer of surrounding double quotes, if present.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

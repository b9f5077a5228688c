package hookscript

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	trueLiteral  = "$true"
	falseLiteral = "$false"
	nullLiteral  = "$null"
)

// errSubstitution marks a malformed $token. It aborts the single command or
// action being built, never the enclosing rule.
var errSubstitution = errors.New("unrecognized substitution token")

// substitute expands every host-property reference, user variable, command
// parameter and embedded function call in text against the frame's current
// context. One pass: substituted output is never re-scanned, except that an
// array index expression is itself substituted before the element lookup.
func (eng *Engine) substitute(fr *frame, text string) (string, error) {
	var out strings.Builder
	for i := 0; i < len(text); {
		switch text[i] {
		case '$':
			repl, next, err := eng.substDollar(fr, text, i)
			if err != nil {
				return "", err
			}
			out.WriteString(repl)
			i = next
		case '%':
			repl, next := eng.substPercent(fr, text, i)
			out.WriteString(repl)
			i = next
		default:
			out.WriteByte(text[i])
			i++
		}
	}
	return out.String(), nil
}

func (eng *Engine) substDollar(fr *frame, text string, start int) (string, int, error) {
	i := start + 1
	if i >= len(text) {
		return "$", i, nil
	}

	// $N, $N-M and $N- expand command parameters.
	if isDigit(text[i]) {
		return eng.substParam(fr, text, i)
	}

	tok, end := scanToken(text, i)
	if tok == "" {
		return "$", i, nil
	}

	// Embedded call: $name(args).
	if !strings.Contains(tok, ".") && end < len(text) && text[end] == '(' {
		closeIdx := matchBracket(text, end, '(', ')')
		if closeIdx < 0 {
			return "", 0, fmt.Errorf("%w: unterminated call $%s(", errSubstitution, tok)
		}
		result, err := eng.evalCallText(fr, tok, text[end+1:closeIdx])
		if err != nil {
			return "", 0, err
		}
		return result, closeIdx + 1, nil
	}

	switch {
	case tok == "true" || tok == "false" || tok == "null":
		// Boolean and null literals pass through untouched; comparison
		// normalization happens in the evaluator.
		return "$" + tok, end, nil

	case tok == "time":
		return strconv.FormatInt(time.Now().Unix(), 10), end, nil

	case tok == "text":
		// The free-form payload of the triggering event: message body,
		// part/quit reason, new topic.
		if fr.extra == "" {
			return nullLiteral, end, nil
		}
		return fr.extra, end, nil

	case tok == "server" || tok == "server.name":
		return eng.host.ServerName(), end, nil

	case tok == "client" || strings.HasPrefix(tok, "client."):
		repl, err := eng.clientProperty(fr.client, strings.TrimPrefix(tok, "client"))
		return repl, end, err

	case tok == "channel" || strings.HasPrefix(tok, "channel."):
		repl, err := eng.channelProperty(fr.channel, strings.TrimPrefix(tok, "channel"))
		return repl, end, err

	case tok == "chan" || strings.HasPrefix(tok, "chan."):
		repl, err := eng.channelProperty(fr.channel, strings.TrimPrefix(tok, "chan"))
		return repl, end, err
	}

	// Function parameters and locals are also reachable as $name, with
	// property access when the variable holds an entity reference.
	base, prop, hasProp := strings.Cut(tok, ".")
	if val, ok := fr.scope.get(base); ok {
		if !hasProp {
			return val.text(), end, nil
		}
		switch val.Kind {
		case ValueClient:
			repl, err := eng.clientProperty(val.Entity, "."+prop)
			return repl, end, err
		case ValueChannel:
			repl, err := eng.channelProperty(val.Entity, "."+prop)
			return repl, end, err
		}
	}

	return "", 0, fmt.Errorf("%w: $%s", errSubstitution, tok)
}

func (eng *Engine) substParam(fr *frame, text string, i int) (string, int, error) {
	j := i
	for j < len(text) && isDigit(text[j]) {
		j++
	}
	startN, _ := strconv.Atoi(text[i:j])

	endN := startN
	unbounded := false
	if j < len(text) && text[j] == '-' {
		k := j + 1
		for k < len(text) && isDigit(text[k]) {
			k++
		}
		if k > j+1 {
			endN, _ = strconv.Atoi(text[j+1 : k])
			j = k
		} else {
			unbounded = true
			j = j + 1
		}
	}
	if unbounded {
		endN = len(fr.params)
	}

	var parts []string
	for n := startN; n <= endN; n++ {
		if n >= 1 && n <= len(fr.params) {
			parts = append(parts, fr.params[n-1])
		}
	}
	if len(parts) == 0 {
		return nullLiteral, j, nil
	}
	return strings.Join(parts, " "), j, nil
}

// substPercent expands a %variable reference, including %name[index] element
// access and %name.property access on entity-typed variables. An unset
// variable or out-of-range index yields the null literal.
func (eng *Engine) substPercent(fr *frame, text string, start int) (string, int) {
	i := start + 1
	j := i
	for j < len(text) && isWordByte(text[j]) {
		j++
	}
	if j == i {
		return "%", i
	}
	name := text[i:j]

	val, ok := fr.scope.get(name)
	if !ok {
		return nullLiteral, j
	}

	// Element access: the index expression gets its own substitution pass.
	if j < len(text) && text[j] == '[' {
		closeIdx := matchBracket(text, j, '[', ']')
		if closeIdx < 0 {
			return val.text(), j
		}
		indexExpr := text[j+1 : closeIdx]
		idxText, err := eng.substitute(fr, indexExpr)
		if err != nil {
			return nullLiteral, closeIdx + 1
		}
		idx, err := strconv.Atoi(strings.TrimSpace(idxText))
		if err != nil || val.Kind != ValueArray || val.Arr == nil {
			return nullLiteral, closeIdx + 1
		}
		elem, ok := val.Arr.Get(idx)
		if !ok {
			return nullLiteral, closeIdx + 1
		}
		return elem.text(), closeIdx + 1
	}

	// Property access, only consumed when the variable holds an entity ref.
	if j+1 < len(text) && text[j] == '.' && isWordByte(text[j+1]) {
		k := j + 1
		for k < len(text) && isWordByte(text[k]) {
			k++
		}
		prop := text[j+1 : k]
		switch val.Kind {
		case ValueClient:
			if repl, err := eng.clientProperty(val.Entity, "."+prop); err == nil {
				return repl, k
			}
		case ValueChannel:
			if repl, err := eng.channelProperty(val.Entity, "."+prop); err == nil {
				return repl, k
			}
		}
	}

	return val.text(), j
}

// clientProperty resolves $client / $client.prop for the named client.
// prop is "" or ".name"-style. A vanished client degrades to the null
// literal; an unknown property is a substitution error.
func (eng *Engine) clientProperty(name, prop string) (string, error) {
	if name == "" {
		return nullLiteral, nil
	}
	client, ok := eng.host.FindClient(name)
	if !ok {
		return nullLiteral, nil
	}
	switch strings.TrimPrefix(prop, ".") {
	case "", "name", "nick":
		return client.Name(), nil
	case "ident", "user":
		return client.Ident(), nil
	case "host", "hostname":
		return client.Hostname(), nil
	case "ip":
		return client.IP(), nil
	case "gecos", "realname":
		return client.Gecos(), nil
	case "account":
		return client.Account(), nil
	case "server":
		return client.ServerName(), nil
	case "channels":
		arr := NewArray()
		for _, ch := range client.Channels() {
			arr.Push(StringValue(ch))
		}
		return arr.String(), nil
	}
	return "", fmt.Errorf("%w: $client%s", errSubstitution, prop)
}

func (eng *Engine) channelProperty(name, prop string) (string, error) {
	if name == "" {
		return nullLiteral, nil
	}
	channel, ok := eng.host.FindChannel(name)
	if !ok {
		return nullLiteral, nil
	}
	switch strings.TrimPrefix(prop, ".") {
	case "", "name":
		return channel.Name(), nil
	case "topic":
		return channel.Topic(), nil
	case "users":
		return strconv.Itoa(channel.UserCount()), nil
	}
	return "", fmt.Errorf("%w: $chan%s", errSubstitution, prop)
}

// scanToken reads a dotted identifier starting at i. A '.' is only consumed
// when a word character follows, so trailing punctuation stays in the text.
func scanToken(text string, i int) (string, int) {
	j := i
	for j < len(text) {
		if isWordByte(text[j]) {
			j++
			continue
		}
		if text[j] == '.' && j+1 < len(text) && isWordByte(text[j+1]) {
			j++
			continue
		}
		break
	}
	return text[i:j], j
}

// matchBracket returns the index of the closer matching the opener at
// text[open], honoring nesting and quotes, or -1.
func matchBracket(text string, open int, oc, cc byte) int {
	depth := 0
	inQuote := false
	for i := open; i < len(text); i++ {
		switch text[i] {
		case '"':
			inQuote = !inQuote
		case oc:
			if !inQuote {
				depth++
			}
		case cc:
			if !inQuote {
				depth--
				if depth == 0 {
					return i
				}
			}
		}
	}
	return -1
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isWordByte(ch byte) bool {
	return ch == '_' || ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || isDigit(ch)
}

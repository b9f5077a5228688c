package parser

import (
	"fmt"
	"strings"
)

// MaxNestDepth bounds how deeply if/loop blocks may nest. Exceeding it is a
// parse failure for the whole file, never a silent truncation.
const MaxNestDepth = 10

// ParseError describes why a script file was rejected. A file that fails to
// parse contributes no rules at all.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

func errorf(file string, line int, format string, args ...interface{}) *ParseError {
	return &ParseError{File: file, Line: line, Msg: fmt.Sprintf(format, args...)}
}

// ParseScript parses one script source file into rules and function
// definitions. Top-level constructs are:
//
//	on EVENT:target:{ ... }
//	new COMMAND:name:{ ... }
//	function $name($a, $b) { ... }
func ParseScript(name, src string) (*Script, error) {
	lines := SplitLines(src)
	script := &Script{Name: name}

	for i := 0; i < len(lines); {
		ln := lines[i]
		switch {
		case strings.HasPrefix(ln.Text, "on "):
			rule, next, err := parseRuleHeader(name, lines, i, false)
			if err != nil {
				return nil, err
			}
			script.Rules = append(script.Rules, rule)
			i = next

		case strings.HasPrefix(ln.Text, "new "):
			rule, next, err := parseRuleHeader(name, lines, i, true)
			if err != nil {
				return nil, err
			}
			script.Rules = append(script.Rules, rule)
			i = next

		case strings.HasPrefix(ln.Text, "function "):
			fn, next, err := parseFunction(name, lines, i)
			if err != nil {
				return nil, err
			}
			script.Functions = append(script.Functions, fn)
			i = next

		default:
			return nil, errorf(name, ln.Num, "unexpected top-level statement %q", ln.Text)
		}
	}

	return script, nil
}

func parseRuleHeader(file string, lines []Line, i int, isNew bool) (*Rule, int, error) {
	ln := lines[i]
	keyword := "on "
	if isNew {
		keyword = "new "
	}
	header := strings.TrimSpace(strings.TrimPrefix(ln.Text, keyword))
	if !strings.HasSuffix(header, "{") {
		return nil, 0, errorf(file, ln.Num, "rule header must end with '{': %q", ln.Text)
	}
	header = strings.TrimSpace(strings.TrimSuffix(header, "{"))

	parts := strings.SplitN(header, ":", 3)
	if len(parts) < 2 {
		return nil, 0, errorf(file, ln.Num, "malformed rule header %q", ln.Text)
	}
	eventName := strings.TrimSpace(parts[0])
	target := strings.TrimSpace(parts[1])
	if target == "" {
		return nil, 0, errorf(file, ln.Num, "rule has empty target")
	}

	rule := &Rule{Target: target, Line: ln.Num}
	if eventName == "COMMAND" {
		if isNew {
			rule.Event = EventCommandNew
		} else {
			rule.Event = EventCommandOverride
		}
	} else if isNew {
		return nil, 0, errorf(file, ln.Num, "'new' only declares commands, got event %q", eventName)
	} else {
		kind, ok := LookupEvent(eventName)
		if !ok {
			return nil, 0, errorf(file, ln.Num, "unknown event %q", eventName)
		}
		rule.Event = kind
	}

	body, closeIdx, ok := collectBody(lines, i)
	if !ok {
		return nil, 0, errorf(file, ln.Num, "unterminated rule block")
	}
	actions, err := parseActions(file, body, 1)
	if err != nil {
		return nil, 0, err
	}
	rule.Actions = actions
	return rule, closeIdx + 1, nil
}

func parseFunction(file string, lines []Line, i int) (*Function, int, error) {
	ln := lines[i]
	header := strings.TrimSpace(strings.TrimPrefix(ln.Text, "function "))
	if !strings.HasSuffix(header, "{") {
		return nil, 0, errorf(file, ln.Num, "function header must end with '{': %q", ln.Text)
	}
	header = strings.TrimSpace(strings.TrimSuffix(header, "{"))

	open := strings.IndexByte(header, '(')
	close := strings.LastIndexByte(header, ')')
	if open < 0 || close < open {
		return nil, 0, errorf(file, ln.Num, "malformed function header %q", ln.Text)
	}
	fnName := strings.TrimSpace(header[:open])
	fnName = strings.TrimPrefix(fnName, "$")
	if fnName == "" {
		return nil, 0, errorf(file, ln.Num, "function has no name")
	}

	var params []string
	if args := strings.TrimSpace(header[open+1 : close]); args != "" {
		for _, p := range splitTop(args, ',') {
			p = strings.TrimSpace(p)
			p = strings.TrimPrefix(p, "$")
			p = strings.TrimPrefix(p, "%")
			if p == "" {
				return nil, 0, errorf(file, ln.Num, "empty parameter in function %s", fnName)
			}
			params = append(params, p)
		}
	}

	body, closeIdx, ok := collectBody(lines, i)
	if !ok {
		return nil, 0, errorf(file, ln.Num, "unterminated function %s", fnName)
	}
	actions, err := parseActions(file, body, 1)
	if err != nil {
		return nil, 0, err
	}

	return &Function{Name: fnName, Params: params, Body: actions, Line: ln.Num}, closeIdx + 1, nil
}

// parseActions parses a block body into an ordered action list. depth counts
// block nesting from the rule body inward.
func parseActions(file string, lines []Line, depth int) ([]*Action, error) {
	if depth > MaxNestDepth {
		line := 0
		if len(lines) > 0 {
			line = lines[0].Num
		}
		return nil, errorf(file, line, "block nesting exceeds maximum depth %d", MaxNestDepth)
	}

	var actions []*Action
	for i := 0; i < len(lines); {
		text := lines[i].Text
		switch {
		case strings.HasPrefix(text, "if ") || strings.HasPrefix(text, "if("):
			act, next, err := parseIfChain(file, lines, i, depth)
			if err != nil {
				return nil, err
			}
			actions = append(actions, act)
			i = next

		case strings.HasPrefix(text, "while ") || strings.HasPrefix(text, "while("):
			act, next, err := parseWhile(file, lines, i, depth)
			if err != nil {
				return nil, err
			}
			actions = append(actions, act)
			i = next

		case strings.HasPrefix(text, "for ") || strings.HasPrefix(text, "for("):
			act, next, err := parseFor(file, lines, i, depth)
			if err != nil {
				return nil, err
			}
			actions = append(actions, act)
			i = next

		default:
			act, err := parseStatement(file, lines[i])
			if err != nil {
				return nil, err
			}
			actions = append(actions, act)
			i++
		}
	}
	return actions, nil
}

// parseIfChain parses "if (cond) { ... }" together with any "} else if" /
// "} else" continuations, whether the else sits on the closing-brace line or
// on the line after it.
func parseIfChain(file string, lines []Line, i, depth int) (*Action, int, error) {
	ln := lines[i]
	cond, err := headerCondition(file, ln)
	if err != nil {
		return nil, 0, err
	}
	act := &Action{Kind: ActionIf, Cond: cond, Line: ln.Num}

	body, closeIdx, ok := collectBody(lines, i)
	if !ok {
		return nil, 0, errorf(file, ln.Num, "unterminated if block")
	}
	if act.Body, err = parseActions(file, body, depth+1); err != nil {
		return nil, 0, err
	}

	// Locate an else continuation: "} else ..." on the closing line, or an
	// "else ..." line immediately after a bare "}".
	elseIdx := -1
	closing := strings.TrimSpace(strings.TrimPrefix(lines[closeIdx].Text, "}"))
	if strings.HasPrefix(closing, "else") {
		elseIdx = closeIdx
	} else if closing == "" && closeIdx+1 < len(lines) && strings.HasPrefix(lines[closeIdx+1].Text, "else") {
		elseIdx = closeIdx + 1
	}
	if elseIdx < 0 {
		return act, closeIdx + 1, nil
	}

	elseText := strings.TrimSpace(strings.TrimPrefix(lines[elseIdx].Text, "}"))
	if strings.HasPrefix(elseText, "else if") || strings.HasPrefix(elseText, "else if(") {
		nested, next, err := parseIfChain(file, lines, elseIdx, depth)
		if err != nil {
			return nil, 0, err
		}
		act.Else = []*Action{nested}
		return act, next, nil
	}

	if !strings.HasSuffix(elseText, "{") {
		return nil, 0, errorf(file, lines[elseIdx].Num, "else must open a block: %q", lines[elseIdx].Text)
	}
	ebody, ecloseIdx, ok := collectBody(lines, elseIdx)
	if !ok {
		return nil, 0, errorf(file, lines[elseIdx].Num, "unterminated else block")
	}
	if act.Else, err = parseActions(file, ebody, depth+1); err != nil {
		return nil, 0, err
	}
	return act, ecloseIdx + 1, nil
}

func parseWhile(file string, lines []Line, i, depth int) (*Action, int, error) {
	ln := lines[i]
	cond, err := headerCondition(file, ln)
	if err != nil {
		return nil, 0, err
	}
	act := &Action{Kind: ActionWhile, Cond: cond, Line: ln.Num}

	body, closeIdx, ok := collectBody(lines, i)
	if !ok {
		return nil, 0, errorf(file, ln.Num, "unterminated while block")
	}
	if act.Body, err = parseActions(file, body, depth+1); err != nil {
		return nil, 0, err
	}
	return act, closeIdx + 1, nil
}

func parseFor(file string, lines []Line, i, depth int) (*Action, int, error) {
	ln := lines[i]
	header, err := headerParen(file, ln)
	if err != nil {
		return nil, 0, err
	}

	spec, err := parseLoopSpec(file, ln.Num, header)
	if err != nil {
		return nil, 0, err
	}
	act := &Action{Kind: ActionFor, Loop: spec, Line: ln.Num}

	body, closeIdx, ok := collectBody(lines, i)
	if !ok {
		return nil, 0, errorf(file, ln.Num, "unterminated for block")
	}
	if act.Body, err = parseActions(file, body, depth+1); err != nil {
		return nil, 0, err
	}
	return act, closeIdx + 1, nil
}

func parseLoopSpec(file string, lineNum int, header string) (*LoopSpec, error) {
	if parts := splitTop(header, ';'); len(parts) == 3 {
		init, err := parseStatement(file, Line{Text: strings.TrimSpace(parts[0]), Num: lineNum})
		if err != nil {
			return nil, err
		}
		cond, err := ParseBoolExpr(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, errorf(file, lineNum, "bad for condition: %v", err)
		}
		incr, err := parseStatement(file, Line{Text: strings.TrimSpace(parts[2]), Num: lineNum})
		if err != nil {
			return nil, err
		}
		return &LoopSpec{Init: init, Cond: cond, Incr: incr}, nil
	}

	// Ranged form: %i in start..end
	idx := indexTop(header, " in ")
	if idx < 0 {
		return nil, errorf(file, lineNum, "malformed for header %q", header)
	}
	varName := strings.TrimSpace(header[:idx])
	varName = strings.TrimPrefix(varName, "var ")
	varName = strings.TrimSpace(varName)
	if !strings.HasPrefix(varName, "%") {
		return nil, errorf(file, lineNum, "for loop variable must be %%-prefixed, got %q", varName)
	}
	rangeExpr := strings.TrimSpace(header[idx+4:])
	dots := strings.Index(rangeExpr, "..")
	if dots < 0 {
		return nil, errorf(file, lineNum, "for range must be start..end, got %q", rangeExpr)
	}
	return &LoopSpec{
		Ranged: true,
		Var:    strings.TrimPrefix(varName, "%"),
		Start:  strings.TrimSpace(rangeExpr[:dots]),
		End:    strings.TrimSpace(rangeExpr[dots+2:]),
	}, nil
}

// parseStatement classifies a single non-block statement line.
func parseStatement(file string, ln Line) (*Action, error) {
	text := ln.Text

	switch text {
	case "break":
		return &Action{Kind: ActionBreak, Line: ln.Num}, nil
	case "continue":
		return &Action{Kind: ActionContinue, Line: ln.Num}, nil
	case "return":
		return &Action{Kind: ActionReturn, Line: ln.Num}, nil
	}

	if strings.HasPrefix(text, "return ") {
		return &Action{
			Kind: ActionReturn,
			Args: []string{strings.TrimSpace(strings.TrimPrefix(text, "return "))},
			Line: ln.Num,
		}, nil
	}

	if strings.HasPrefix(text, "cap ") {
		return &Action{Kind: ActionCap, Args: []string{strings.TrimSpace(text[4:])}, Line: ln.Num}, nil
	}
	if strings.HasPrefix(text, "isupport ") {
		return &Action{Kind: ActionIsupport, Args: []string{strings.TrimSpace(text[9:])}, Line: ln.Num}, nil
	}

	isConst := false
	if strings.HasPrefix(text, "const var ") {
		isConst = true
		text = "var " + strings.TrimSpace(text[len("const var "):])
	}
	if strings.HasPrefix(text, "var ") {
		return parseVarDecl(file, ln, text, isConst)
	}

	if strings.HasPrefix(text, "%") {
		return parseVarStatement(file, ln, text)
	}

	// $func(args) or builtin(args) call statement.
	if name, args, ok := splitCall(text); ok {
		return &Action{Kind: ActionCall, Name: name, Args: args, Line: ln.Num}, nil
	}

	// Anything else is a host command with positional arguments.
	words := fields(text)
	return &Action{Kind: ActionCommand, Name: words[0], Args: words[1:], Line: ln.Num}, nil
}

func parseVarDecl(file string, ln Line, text string, isConst bool) (*Action, error) {
	rest := strings.TrimSpace(text[4:])
	words := fields(rest)
	if len(words) == 0 || !strings.HasPrefix(words[0], "%") {
		return nil, errorf(file, ln.Num, "var declaration needs a %%-prefixed name: %q", ln.Text)
	}
	name := strings.TrimPrefix(words[0], "%")

	act := &Action{Kind: ActionVar, Name: name, Const: isConst, Line: ln.Num}
	value := strings.TrimSpace(rest[len(words[0]):])
	value = strings.TrimSpace(strings.TrimPrefix(value, "="))
	if value != "" {
		act.Args = []string{value}
	}
	return act, nil
}

// parseVarStatement handles statements beginning with a %variable:
// increments, compound assignment, element assignment, and plain
// reassignment.
func parseVarStatement(file string, ln Line, text string) (*Action, error) {
	nameEnd := 1
	for nameEnd < len(text) && (isWordChar(text[nameEnd])) {
		nameEnd++
	}
	name := text[1:nameEnd]
	if name == "" {
		return nil, errorf(file, ln.Num, "malformed variable statement %q", text)
	}
	rest := strings.TrimSpace(text[nameEnd:])

	// %name[index] = value
	if strings.HasPrefix(rest, "[") {
		close := strings.IndexByte(rest, ']')
		if close < 0 {
			return nil, errorf(file, ln.Num, "unterminated index in %q", text)
		}
		index := strings.TrimSpace(rest[1:close])
		after := strings.TrimSpace(rest[close+1:])
		if !strings.HasPrefix(after, "=") {
			return nil, errorf(file, ln.Num, "element assignment needs '=': %q", text)
		}
		value := strings.TrimSpace(after[1:])
		return &Action{Kind: ActionVar, Name: name, Index: index, Args: []string{value}, Line: ln.Num}, nil
	}

	switch {
	case rest == "++" || rest == "--":
		return &Action{Kind: ActionArith, Name: name, Op: rest, Line: ln.Num}, nil
	case strings.HasPrefix(rest, "+="), strings.HasPrefix(rest, "-="),
		strings.HasPrefix(rest, "*="), strings.HasPrefix(rest, "/="):
		return &Action{
			Kind: ActionArith,
			Name: name,
			Op:   rest[:2],
			Args: []string{strings.TrimSpace(rest[2:])},
			Line: ln.Num,
		}, nil
	case strings.HasPrefix(rest, "="):
		value := strings.TrimSpace(rest[1:])
		if looksArithmetic(value) {
			return &Action{Kind: ActionArith, Name: name, Op: "=", Args: []string{value}, Line: ln.Num}, nil
		}
		return &Action{Kind: ActionVar, Name: name, Args: []string{value}, Line: ln.Num}, nil
	}
	return nil, errorf(file, ln.Num, "malformed variable statement %q", text)
}

// looksArithmetic decides whether an assignment value is an arithmetic
// expression rather than plain text. It must carry an operator and open
// with a number or a %variable, so strings that merely contain a hyphen
// ("foo-bar") stay string assignments.
func looksArithmetic(value string) bool {
	if !strings.ContainsAny(value, "+-*/") {
		return false
	}
	switch {
	case value[0] >= '0' && value[0] <= '9', value[0] == '%':
		return true
	case value[0] == '-' && len(value) > 1 && value[1] >= '0' && value[1] <= '9':
		return true
	}
	return false
}

// splitCall recognizes "$name(args)" and "name(args)" statements and returns
// the bare function name plus its comma-split argument expressions.
func splitCall(text string) (string, []string, bool) {
	if !strings.HasSuffix(text, ")") {
		return "", nil, false
	}
	open := strings.IndexByte(text, '(')
	if open <= 0 {
		return "", nil, false
	}
	name := strings.TrimPrefix(text[:open], "$")
	if name == "" || strings.ContainsAny(name, " \t") {
		return "", nil, false
	}
	for i := 0; i < len(name); i++ {
		if !isWordChar(name[i]) {
			return "", nil, false
		}
	}
	inner := text[open+1 : len(text)-1]
	var args []string
	if strings.TrimSpace(inner) != "" {
		for _, a := range splitTop(inner, ',') {
			args = append(args, unquote(strings.TrimSpace(a)))
		}
	}
	return name, args, true
}

// headerCondition extracts and parses the (...) condition of an if/while
// header line.
func headerCondition(file string, ln Line) (BoolExpr, error) {
	inner, err := headerParen(file, ln)
	if err != nil {
		return nil, err
	}
	cond, err := ParseBoolExpr(inner)
	if err != nil {
		return nil, errorf(file, ln.Num, "bad condition: %v", err)
	}
	return cond, nil
}

// headerParen returns the text between the first '(' and its matching ')'
// on a block header line, which must end with '{'.
func headerParen(file string, ln Line) (string, error) {
	text := ln.Text
	if !strings.HasSuffix(text, "{") {
		return "", errorf(file, ln.Num, "block header must end with '{': %q", text)
	}
	open := strings.IndexByte(text, '(')
	if open < 0 {
		return "", errorf(file, ln.Num, "block header missing '(': %q", text)
	}
	close := matchParen(text, open)
	if close < 0 {
		return "", errorf(file, ln.Num, "unbalanced parentheses in %q", text)
	}
	return strings.TrimSpace(text[open+1 : close]), nil
}

// matchParen returns the index of the ')' matching the '(' at s[open],
// honoring nesting and quotes, or -1.
func matchParen(s string, open int) int {
	depth := 0
	inQuote := false
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuote = !inQuote
		case '(':
			if !inQuote {
				depth++
			}
		case ')':
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

func isWordChar(ch byte) bool {
	return ch == '_' || ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ('0' <= ch && ch <= '9')
}

// ParseBoolExpr parses a compound boolean expression: outer parentheses,
// top-level || (lowest precedence), then top-level &&, then a single
// condition. Operator search never descends into parenthesized groups.
func ParseBoolExpr(s string) (BoolExpr, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty condition")
	}

	if s[0] == '(' && matchParen(s, 0) == len(s)-1 {
		inner, err := ParseBoolExpr(s[1 : len(s)-1])
		if err != nil {
			return nil, err
		}
		return &ParenExpr{Inner: inner}, nil
	}

	if idx := indexTop(s, "||"); idx >= 0 {
		left, err := ParseBoolExpr(s[:idx])
		if err != nil {
			return nil, err
		}
		right, err := ParseBoolExpr(s[idx+2:])
		if err != nil {
			return nil, err
		}
		return &OrExpr{Left: left, Right: right}, nil
	}

	if idx := indexTop(s, "&&"); idx >= 0 {
		left, err := ParseBoolExpr(s[:idx])
		if err != nil {
			return nil, err
		}
		right, err := ParseBoolExpr(s[idx+2:])
		if err != nil {
			return nil, err
		}
		return &AndExpr{Left: left, Right: right}, nil
	}

	return parseCondition(s), nil
}

// wordOps are operator spellings made of letters; they only match on word
// boundaries. Longer and more specific spellings come first so e.g. "insg"
// is never shadowed by "in" and "ishideoper" never by "ishidden".
var wordOps = []string{
	"!hascap", "hascap",
	"ischanop", "isvoice", "ishalfop", "isadmin", "isowner",
	"isoper", "isinvisible", "isregnick", "ishideoper", "ishidden",
	"issecure", "istls", "isuline", "isloggedin", "isserver",
	"isquarantined", "isshunned", "isvirus", "isinvited", "isbanned",
	"hasaccess", "!insg", "insg", "!has", "has", "in",
}

// symbolOps match anywhere at top level; two-char spellings first.
var symbolOps = []string{"<=", ">=", "==", "!=", "<", ">"}

func parseCondition(s string) *Condition {
	s = strings.TrimSpace(s)

	for _, op := range wordOps {
		pat := " " + op
		from := 0
		for {
			idx := indexTop(s[from:], pat)
			if idx < 0 {
				break
			}
			idx += from
			end := idx + len(pat)
			if end == len(s) || s[end] == ' ' {
				return &Condition{
					Variable: strings.TrimSpace(s[:idx]),
					Operator: op,
					Value:    unquote(strings.TrimSpace(s[end:])),
				}
			}
			from = end
		}
	}

	for _, op := range symbolOps {
		if idx := indexTop(s, op); idx >= 0 {
			return &Condition{
				Variable: strings.TrimSpace(s[:idx]),
				Operator: op,
				Value:    unquote(strings.TrimSpace(s[idx+len(op):])),
			}
		}
	}

	// No operator: bare truthiness test.
	return &Condition{Variable: unquote(s)}
}

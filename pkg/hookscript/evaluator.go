package hookscript

import (
	"strconv"
	"strings"

	"github.com/chosenoffset/hookscript/pkg/hookscript/parser"
)

// evalBool walks a boolean-expression tree depth-first with short-circuit
// semantics: And never evaluates its right side when the left was false, Or
// never when the left was true.
func (eng *Engine) evalBool(fr *frame, expr parser.BoolExpr) bool {
	switch e := expr.(type) {
	case *parser.ParenExpr:
		return eng.evalBool(fr, e.Inner)
	case *parser.AndExpr:
		return eng.evalBool(fr, e.Left) && eng.evalBool(fr, e.Right)
	case *parser.OrExpr:
		return eng.evalBool(fr, e.Left) || eng.evalBool(fr, e.Right)
	case *parser.Condition:
		return eng.evalCondition(fr, e)
	}
	return false
}

func (eng *Engine) evalCondition(fr *frame, cond *parser.Condition) bool {
	// No operator: truthiness test on the evaluated value.
	if cond.Operator == "" {
		return !isFalsy(eng.evalConditionValue(fr, cond.Variable))
	}

	switch cond.Operator {
	case "==", "!=", "<", ">", "<=", ">=":
		return eng.evalComparison(fr, cond)
	case "has", "!has":
		return eng.evalHas(fr, cond)
	case "in":
		return eng.evalIn(fr, cond)
	case "insg", "!insg":
		client, ok := eng.condSubject(fr, cond.Variable)
		if !ok {
			return false
		}
		group := eng.evalConditionValue(fr, cond.Value)
		result := group != "" && client.InSecurityGroup(group)
		if cond.Operator == "!insg" {
			return !result
		}
		return result
	case "hascap", "!hascap":
		client, ok := eng.condSubject(fr, cond.Variable)
		if !ok {
			return false
		}
		result := cond.Value != "" && client.HasCap(cond.Value)
		if cond.Operator == "!hascap" {
			return !result
		}
		return result
	}

	return eng.evalPredicate(fr, cond)
}

// condSubject resolves the client a predicate applies to: the context client
// for $client, or the entity held by a %variable of client kind.
func (eng *Engine) condSubject(fr *frame, variable string) (Client, bool) {
	name := ""
	switch {
	case variable == "$client":
		name = fr.client
	case strings.HasPrefix(variable, "%"):
		if val, ok := fr.scope.get(variable); ok && val.Kind == ValueClient {
			name = val.Entity
		}
	}
	if name == "" {
		return nil, false
	}
	return eng.host.FindClient(name)
}

// condChannel resolves the channel a predicate applies to; predicates that
// need one and have none evaluate false, never error.
func (eng *Engine) condChannel(fr *frame) (Channel, bool) {
	if fr.channel == "" {
		return nil, false
	}
	return eng.host.FindChannel(fr.channel)
}

var memberModeOps = map[string]string{
	"ischanop": "o",
	"isvoice":  "v",
	"ishalfop": "h",
	"isadmin":  "a",
	"isowner":  "q",
}

var flagOps = map[string]ClientFlag{
	"isoper":        FlagOper,
	"isinvisible":   FlagInvisible,
	"isregnick":     FlagRegNick,
	"ishidden":      FlagHidden,
	"ishideoper":    FlagHideOper,
	"issecure":      FlagSecure,
	"istls":         FlagSecure,
	"isuline":       FlagULine,
	"isloggedin":    FlagLoggedIn,
	"isserver":      FlagServer,
	"isquarantined": FlagQuarantined,
	"isshunned":     FlagShunned,
	"isvirus":       FlagVirus,
}

func (eng *Engine) evalPredicate(fr *frame, cond *parser.Condition) bool {
	client, ok := eng.condSubject(fr, cond.Variable)
	if !ok {
		return false
	}

	if modes, ok := memberModeOps[cond.Operator]; ok {
		channel, ok := eng.condChannel(fr)
		if !ok {
			return false
		}
		return client.ChannelStatus(channel.Name(), modes)
	}
	if flag, ok := flagOps[cond.Operator]; ok {
		return client.Is(flag)
	}

	switch cond.Operator {
	case "hasaccess":
		channel, ok := eng.condChannel(fr)
		if !ok || cond.Value == "" {
			return false
		}
		return client.ChannelStatus(channel.Name(), cond.Value)
	case "isinvited":
		channel, ok := eng.condChannel(fr)
		if !ok {
			return false
		}
		return client.Invited(channel.Name())
	case "isbanned":
		channel, ok := eng.condChannel(fr)
		if !ok {
			return false
		}
		return client.Banned(channel.Name())
	}

	return false
}

// evalIn tests channel membership. The operand may be $chan/$channel (the
// context channel), a %variable holding a channel ref, or a literal #name.
func (eng *Engine) evalIn(fr *frame, cond *parser.Condition) bool {
	client, ok := eng.condSubject(fr, cond.Variable)
	if !ok || cond.Value == "" {
		return false
	}

	target := ""
	switch {
	case cond.Value == "$chan" || cond.Value == "$channel":
		target = fr.channel
	case strings.HasPrefix(cond.Value, "%"):
		if val, ok := fr.scope.get(cond.Value); ok && val.Kind == ValueChannel {
			target = val.Entity
		}
	default:
		resolved := eng.evalConditionValue(fr, cond.Value)
		if strings.HasPrefix(resolved, "#") {
			target = resolved
		}
	}
	if target == "" {
		return false
	}
	if _, ok := eng.host.FindChannel(target); !ok {
		return false
	}
	return client.MemberOf(target)
}

// evalHas answers "has" tests. $client.umodes delegates to the host's
// user-mode query; anything else is a substring test on the evaluated value.
func (eng *Engine) evalHas(fr *frame, cond *parser.Condition) bool {
	result := false
	if cond.Variable == "$client.umodes" {
		if client, ok := eng.host.FindClient(fr.client); ok && fr.client != "" {
			result = client.HasUserMode(cond.Value)
		}
	} else {
		haystack := eng.evalConditionValue(fr, cond.Variable)
		result = cond.Value != "" && strings.Contains(haystack, cond.Value)
	}
	if cond.Operator == "!has" {
		return !result
	}
	return result
}

func (eng *Engine) evalComparison(fr *frame, cond *parser.Condition) bool {
	left := normalizeLiteral(eng.evalConditionValue(fr, cond.Variable))
	right := normalizeLiteral(eng.evalConditionValue(fr, cond.Value))

	switch cond.Operator {
	case "==":
		return left == right
	case "!=":
		return left != right
	}

	// Ordering comparisons prefer numeric semantics when both sides are
	// integers.
	li, lerr := strconv.Atoi(left)
	ri, rerr := strconv.Atoi(right)
	if lerr == nil && rerr == nil {
		switch cond.Operator {
		case "<":
			return li < ri
		case ">":
			return li > ri
		case "<=":
			return li <= ri
		case ">=":
			return li >= ri
		}
	}
	switch cond.Operator {
	case "<":
		return left < right
	case ">":
		return left > right
	case "<=":
		return left <= right
	case ">=":
		return left >= right
	}
	return false
}

// normalizeLiteral folds the $true/$false/$null literals to canonical
// tokens so a stored "$false" compares equal to the literal $false. The
// empty string is the null value, so it folds with $null.
func normalizeLiteral(s string) string {
	switch s {
	case trueLiteral, "true":
		return "true"
	case falseLiteral, "false":
		return "false"
	case nullLiteral, "null", "":
		return "\x00null"
	}
	return s
}

// evalConditionValue evaluates one operand of a condition: an embedded
// function call runs and yields its return value, anything else goes through
// substitution. Failures degrade to the empty string.
func (eng *Engine) evalConditionValue(fr *frame, operand string) string {
	operand = strings.TrimSpace(operand)
	if name, args, ok := splitCallText(operand); ok {
		if eng.isCallable(name) {
			val, err := eng.evalCall(fr, name, args)
			if err != nil {
				return ""
			}
			return val.text()
		}
	}
	out, err := eng.substitute(fr, operand)
	if err != nil {
		return ""
	}
	return out
}

// isFalsy implements script truthiness: empty, "0", false and null spellings
// are falsy, everything else truthy.
func isFalsy(s string) bool {
	switch s {
	case "", "0", falseLiteral, "false", nullLiteral, "null":
		return true
	}
	return false
}

// evalArith evaluates a left-to-right integer expression over + - * / after
// substitution. Division by zero leaves the accumulator unchanged.
func (eng *Engine) evalArith(fr *frame, expr string) int {
	text, err := eng.substitute(fr, expr)
	if err != nil {
		return 0
	}

	result := 0
	current := 0
	haveCurrent := false
	op := byte('+')
	first := true

	apply := func() {
		if !haveCurrent {
			return
		}
		if first {
			if op == '-' {
				result = -current
			} else {
				result = current
			}
			first = false
		} else {
			switch op {
			case '+':
				result += current
			case '-':
				result -= current
			case '*':
				result *= current
			case '/':
				if current != 0 {
					result /= current
				}
			}
		}
		current = 0
		haveCurrent = false
	}

	for i := 0; i < len(text); i++ {
		ch := text[i]
		switch {
		case isDigit(ch):
			current = current*10 + int(ch-'0')
			haveCurrent = true
		case ch == '+' || ch == '-' || ch == '*' || ch == '/':
			apply()
			op = ch
		case ch == ' ' || ch == '\t':
			// skip
		default:
			apply()
			return result
		}
	}
	apply()
	return result
}

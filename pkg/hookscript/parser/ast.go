package parser

import (
	"strings"
)

// EventKind identifies which host event a rule is bound to.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventStart
	EventConnect
	EventQuit
	EventCanJoin
	EventJoin
	EventPart
	EventKick
	EventNick
	EventPrivmsg
	EventNotice
	EventTopic
	EventMode
	EventInvite
	EventKnock
	EventAway
	EventOper
	EventKill
	EventUmode
	EventChanmode
	EventChannelCreate
	EventChannelDestroy
	EventWhois
	EventRehash
	EventAccountLogin
	EventPreCommand
	EventPostCommand
	EventTklAdd
	EventTklDel
	EventSpamfilter
	EventCommandOverride // on COMMAND:NAME
	EventCommandNew      // new COMMAND:NAME
)

var eventNames = map[string]EventKind{
	"START":           EventStart,
	"CONNECT":         EventConnect,
	"QUIT":            EventQuit,
	"CAN_JOIN":        EventCanJoin,
	"JOIN":            EventJoin,
	"PART":            EventPart,
	"KICK":            EventKick,
	"NICK":            EventNick,
	"PRIVMSG":         EventPrivmsg,
	"NOTICE":          EventNotice,
	"TOPIC":           EventTopic,
	"MODE":            EventMode,
	"INVITE":          EventInvite,
	"KNOCK":           EventKnock,
	"AWAY":            EventAway,
	"OPER":            EventOper,
	"KILL":            EventKill,
	"UMODE":           EventUmode,
	"CHANMODE":        EventChanmode,
	"CHANNEL_CREATE":  EventChannelCreate,
	"CHANNEL_DESTROY": EventChannelDestroy,
	"WHOIS":           EventWhois,
	"REHASH":          EventRehash,
	"ACCOUNT_LOGIN":   EventAccountLogin,
	"PRE_COMMAND":     EventPreCommand,
	"POST_COMMAND":    EventPostCommand,
	"TKL_ADD":         EventTklAdd,
	"TKL_DEL":         EventTklDel,
	"SPAMFILTER":      EventSpamfilter,
}

// LookupEvent maps an event name as written in script source to its kind.
func LookupEvent(name string) (EventKind, bool) {
	kind, ok := eventNames[name]
	return kind, ok
}

func (e EventKind) String() string {
	if e == EventCommandOverride || e == EventCommandNew {
		return "COMMAND"
	}
	for name, kind := range eventNames {
		if kind == e {
			return name
		}
	}
	return "UNKNOWN"
}

// Script is one parsed source file: its rules plus any top-level function
// definitions. A script either parses completely or not at all.
type Script struct {
	Name      string
	Rules     []*Rule
	Functions []*Function
}

// Rule binds one event kind and a target pattern ("*", a channel name, or a
// nick) to an action list.
type Rule struct {
	Event   EventKind
	Target  string
	Actions []*Action
	Line    int
}

// Function is a user-defined script function. Parameters are stored without
// their $ prefix.
type Function struct {
	Name   string
	Params []string
	Body   []*Action
	Line   int
}

// ActionKind discriminates the Action union.
type ActionKind int

const (
	ActionCommand ActionKind = iota
	ActionIf
	ActionWhile
	ActionFor
	ActionVar
	ActionArith
	ActionReturn
	ActionBreak
	ActionContinue
	ActionCall
	ActionCap
	ActionIsupport
)

func (k ActionKind) String() string {
	switch k {
	case ActionCommand:
		return "command"
	case ActionIf:
		return "if"
	case ActionWhile:
		return "while"
	case ActionFor:
		return "for"
	case ActionVar:
		return "var"
	case ActionArith:
		return "arith"
	case ActionReturn:
		return "return"
	case ActionBreak:
		return "break"
	case ActionContinue:
		return "continue"
	case ActionCall:
		return "call"
	case ActionCap:
		return "cap"
	case ActionIsupport:
		return "isupport"
	default:
		return "unknown"
	}
}

// Action is one executable statement node. Which fields are meaningful
// depends on Kind:
//
//   - ActionCommand: Name is the host command, Args its arguments.
//   - ActionIf: Cond, Body, Else (Else may itself hold a single ActionIf for
//     an else-if chain).
//   - ActionWhile: Cond, Body.
//   - ActionFor: Loop, Body.
//   - ActionVar: Name (without %), Args[0] the value expression, Const,
//     Index for element assignment.
//   - ActionArith: Name (without %), Op, Args[0] the operand expression for
//     compound forms.
//   - ActionReturn: Args[0] the value expression, if any.
//   - ActionCall: Name the function, Args its argument expressions.
//   - ActionCap / ActionIsupport: Args[0] the declaration text.
//
// Bodies are owned child slices; sequencing is the order of the containing
// slice. There are no sibling links.
type Action struct {
	Kind  ActionKind
	Name  string
	Args  []string
	Op    string
	Index string
	Const bool
	Cond  BoolExpr
	Body  []*Action
	Else  []*Action
	Loop  *LoopSpec
	Line  int
}

// LoopSpec carries the header of a for loop. Ranged loops use Var/Start/End;
// C-style loops use Init/Cond/Incr.
type LoopSpec struct {
	Ranged bool
	Var    string
	Start  string
	End    string
	Init   *Action
	Cond   BoolExpr
	Incr   *Action
}

// BoolExpr is a binary tree of and/or/parenthesized/simple conditions,
// evaluated with short-circuiting.
type BoolExpr interface {
	String() string
	boolExpr()
}

// AndExpr evaluates Right only when Left was true.
type AndExpr struct {
	Left  BoolExpr
	Right BoolExpr
}

// OrExpr evaluates Right only when Left was false.
type OrExpr struct {
	Left  BoolExpr
	Right BoolExpr
}

// ParenExpr preserves explicit grouping for round-trip serialization.
type ParenExpr struct {
	Inner BoolExpr
}

// Condition is a single comparison or predicate test. Operator is empty for
// a bare truthiness test.
type Condition struct {
	Variable string
	Operator string
	Value    string
}

func (*AndExpr) boolExpr()   {}
func (*OrExpr) boolExpr()    {}
func (*ParenExpr) boolExpr() {}
func (*Condition) boolExpr() {}

func (e *AndExpr) String() string {
	return e.Left.String() + " && " + e.Right.String()
}

func (e *OrExpr) String() string {
	return e.Left.String() + " || " + e.Right.String()
}

func (e *ParenExpr) String() string {
	return "(" + e.Inner.String() + ")"
}

func (c *Condition) String() string {
	if c.Operator == "" {
		return c.Variable
	}
	return c.Variable + " " + c.Operator + " " + c.Value
}

func (s *Script) String() string {
	var out strings.Builder
	for _, fn := range s.Functions {
		out.WriteString(fn.String())
		out.WriteString("\n")
	}
	for _, r := range s.Rules {
		out.WriteString(r.String())
		out.WriteString("\n")
	}
	return out.String()
}

func (r *Rule) String() string {
	var out strings.Builder
	switch r.Event {
	case EventCommandNew:
		out.WriteString("new COMMAND:" + r.Target + ":{\n")
	default:
		out.WriteString("on " + r.Event.String() + ":" + r.Target + ":{\n")
	}
	writeActions(&out, r.Actions, 1)
	out.WriteString("}")
	return out.String()
}

func (f *Function) String() string {
	var out strings.Builder
	out.WriteString("function $" + f.Name + "(")
	for i, p := range f.Params {
		if i > 0 {
			out.WriteString(", ")
		}
		out.WriteString("$" + p)
	}
	out.WriteString(") {\n")
	writeActions(&out, f.Body, 1)
	out.WriteString("}")
	return out.String()
}

func (a *Action) String() string {
	var out strings.Builder
	writeAction(&out, a, 0)
	return out.String()
}

func writeActions(out *strings.Builder, actions []*Action, depth int) {
	for _, a := range actions {
		writeAction(out, a, depth)
		out.WriteString("\n")
	}
}

func writeAction(out *strings.Builder, a *Action, depth int) {
	indent := strings.Repeat("\t", depth)
	out.WriteString(indent)

	switch a.Kind {
	case ActionCommand:
		out.WriteString(a.Name)
		for _, arg := range a.Args {
			out.WriteString(" " + arg)
		}
	case ActionIf:
		out.WriteString("if (" + a.Cond.String() + ") {\n")
		writeActions(out, a.Body, depth+1)
		out.WriteString(indent + "}")
		if len(a.Else) == 1 && a.Else[0].Kind == ActionIf {
			out.WriteString(" else ")
			out.WriteString(indentBlock(a.Else[0].String(), depth))
		} else if len(a.Else) > 0 {
			out.WriteString(" else {\n")
			writeActions(out, a.Else, depth+1)
			out.WriteString(indent + "}")
		}
	case ActionWhile:
		out.WriteString("while (" + a.Cond.String() + ") {\n")
		writeActions(out, a.Body, depth+1)
		out.WriteString(indent + "}")
	case ActionFor:
		out.WriteString("for (" + a.Loop.header() + ") {\n")
		writeActions(out, a.Body, depth+1)
		out.WriteString(indent + "}")
	case ActionVar:
		if a.Index != "" {
			out.WriteString("%" + a.Name + "[" + a.Index + "] = " + a.Args[0])
			break
		}
		if a.Const {
			out.WriteString("const ")
		}
		out.WriteString("var %" + a.Name)
		if len(a.Args) > 0 {
			out.WriteString(" = " + a.Args[0])
		}
	case ActionArith:
		out.WriteString("%" + a.Name)
		switch a.Op {
		case "++", "--":
			out.WriteString(a.Op)
		default:
			out.WriteString(" " + a.Op + " " + a.Args[0])
		}
	case ActionReturn:
		out.WriteString("return")
		if len(a.Args) > 0 {
			out.WriteString(" " + a.Args[0])
		}
	case ActionBreak:
		out.WriteString("break")
	case ActionContinue:
		out.WriteString("continue")
	case ActionCall:
		out.WriteString("$" + a.Name + "(" + strings.Join(a.Args, ", ") + ")")
	case ActionCap:
		out.WriteString("cap " + a.Args[0])
	case ActionIsupport:
		out.WriteString("isupport " + a.Args[0])
	}
}

func (l *LoopSpec) header() string {
	if l.Ranged {
		return "%" + l.Var + " in " + l.Start + ".." + l.End
	}
	return l.Init.headerText() + "; " + l.Cond.String() + "; " + l.Incr.headerText()
}

// headerText renders an action without indentation for use inside a for
// header.
func (a *Action) headerText() string {
	var out strings.Builder
	writeAction(&out, a, 0)
	return out.String()
}

func indentBlock(s string, depth int) string {
	lines := strings.Split(s, "\n")
	for i := 1; i < len(lines); i++ {
		lines[i] = strings.Repeat("\t", depth) + lines[i]
	}
	return strings.Join(lines, "\n")
}

package hookscript

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chosenoffset/hookscript/pkg/hookscript/parser"
)

// flowKind is the structured control-flow result of executing an action.
// Break/Continue are consumed by the innermost loop; Return propagates to
// the rule or function boundary.
type flowKind int

const (
	flowNormal flowKind = iota
	flowBreak
	flowContinue
	flowReturn
)

type flow struct {
	kind  flowKind
	value string
}

var normalFlow = flow{kind: flowNormal}

// frame is the execution context for one rule or function body: the active
// scope plus the entity names and extra text the triggering event carried.
type frame struct {
	scope     *Scope
	client    string
	channel   string
	extra     string
	params    []string
	snapshot  *ChannelSnapshot
	callDepth int
}

// execActions runs an ordered action list, stopping at the first non-normal
// flow result and handing it upward.
func (eng *Engine) execActions(fr *frame, actions []*parser.Action) flow {
	for _, a := range actions {
		if fl := eng.execAction(fr, a); fl.kind != flowNormal {
			return fl
		}
	}
	return normalFlow
}

func (eng *Engine) execAction(fr *frame, a *parser.Action) flow {
	switch a.Kind {
	case parser.ActionCommand:
		eng.execCommand(fr, a)
		return normalFlow

	case parser.ActionIf:
		if eng.evalBool(fr, a.Cond) {
			return eng.execActions(fr, a.Body)
		}
		return eng.execActions(fr, a.Else)

	case parser.ActionWhile:
		return eng.execWhile(fr, a)

	case parser.ActionFor:
		return eng.execFor(fr, a)

	case parser.ActionVar:
		eng.execVar(fr, a)
		return normalFlow

	case parser.ActionArith:
		eng.execArith(fr, a)
		return normalFlow

	case parser.ActionReturn:
		value := ""
		if len(a.Args) > 0 {
			v, err := eng.substitute(fr, a.Args[0])
			if err != nil {
				eng.logger.Printf("return value %q: %v", a.Args[0], err)
			} else {
				value = v
			}
		}
		return flow{kind: flowReturn, value: value}

	case parser.ActionBreak:
		return flow{kind: flowBreak}

	case parser.ActionContinue:
		return flow{kind: flowContinue}

	case parser.ActionCall:
		if _, err := eng.evalCall(fr, a.Name, a.Args); err != nil {
			eng.logger.Printf("function call $%s: %v", a.Name, err)
		}
		return normalFlow

	case parser.ActionCap:
		if name, err := eng.substitute(fr, a.Args[0]); err == nil && name != "" {
			eng.addPendingCap(name)
		}
		return normalFlow

	case parser.ActionIsupport:
		eng.execIsupport(fr, a)
		return normalFlow
	}
	return normalFlow
}

// execCommand substitutes every argument, aborting the whole command on a
// substitution error, then either dispatches to the host or defers the
// command when it is classified destructive.
func (eng *Engine) execCommand(fr *frame, a *parser.Action) {
	args := make([]string, 0, len(a.Args))
	for _, raw := range a.Args {
		arg, err := eng.substitute(fr, raw)
		if err != nil {
			eng.logger.Printf("command %s skipped: %v", a.Name, err)
			return
		}
		args = append(args, arg)
	}

	if eng.isDestructive(a.Name) {
		eng.enqueueDeferred(a.Name, args, fr.client, fr.channel)
		return
	}

	eng.stats.CommandDispatched(a.Name)
	if err := eng.host.Dispatch(a.Name, args); err != nil {
		eng.logger.Printf("command %s failed: %v", a.Name, err)
	}
}

func (eng *Engine) execWhile(fr *frame, a *parser.Action) flow {
	for iter := 0; ; iter++ {
		if iter >= eng.limits.MaxLoopIterations {
			eng.logger.Printf("while loop at line %d exceeded %d iterations, stopping",
				a.Line, eng.limits.MaxLoopIterations)
			return normalFlow
		}
		if !eng.evalBool(fr, a.Cond) {
			return normalFlow
		}
		switch fl := eng.execActions(fr, a.Body); fl.kind {
		case flowBreak:
			return normalFlow
		case flowReturn:
			return fl
		}
	}
}

func (eng *Engine) execFor(fr *frame, a *parser.Action) flow {
	spec := a.Loop
	if spec.Ranged {
		start := eng.evalArith(fr, spec.Start)
		end := eng.evalArith(fr, spec.End)
		iter := 0
		for i := start; i <= end; i++ {
			if iter >= eng.limits.MaxLoopIterations {
				eng.logger.Printf("for loop at line %d exceeded %d iterations, stopping",
					a.Line, eng.limits.MaxLoopIterations)
				return normalFlow
			}
			iter++
			fr.scope.set(spec.Var, StringValue(strconv.Itoa(i)), false)
			switch fl := eng.execActions(fr, a.Body); fl.kind {
			case flowBreak:
				return normalFlow
			case flowReturn:
				return fl
			}
		}
		return normalFlow
	}

	eng.execAction(fr, spec.Init)
	for iter := 0; ; iter++ {
		if iter >= eng.limits.MaxLoopIterations {
			eng.logger.Printf("for loop at line %d exceeded %d iterations, stopping",
				a.Line, eng.limits.MaxLoopIterations)
			return normalFlow
		}
		if !eng.evalBool(fr, spec.Cond) {
			return normalFlow
		}
		fl := eng.execActions(fr, a.Body)
		switch fl.kind {
		case flowBreak:
			return normalFlow
		case flowReturn:
			return fl
		}
		eng.execAction(fr, spec.Incr)
	}
}

// execVar performs variable declarations and assignments: plain values,
// array literals, entity snapshots, function-call results.
func (eng *Engine) execVar(fr *frame, a *parser.Action) {
	// %name[index] = value
	if a.Index != "" {
		eng.execElementAssign(fr, a)
		return
	}

	if len(a.Args) == 0 {
		eng.setVar(fr, a.Name, StringValue(""), a.Const)
		return
	}
	expr := a.Args[0]

	switch {
	case strings.HasPrefix(expr, "["):
		eng.setVar(fr, a.Name, ArrayValue(eng.parseArrayLiteral(fr, expr)), a.Const)

	case expr == "$client.channels":
		arr := NewArray()
		if client, ok := eng.host.FindClient(fr.client); ok && fr.client != "" {
			for _, ch := range client.Channels() {
				arr.Push(StringValue(ch))
			}
		}
		eng.setVar(fr, a.Name, ArrayValue(arr), a.Const)

	default:
		if name, args, ok := splitCallText(expr); ok && eng.isCallable(name) {
			val, err := eng.evalCall(fr, name, args)
			if err != nil {
				eng.logger.Printf("var %%%s: %v", a.Name, err)
				return
			}
			eng.setVar(fr, a.Name, val, a.Const)
			return
		}
		value, err := eng.substitute(fr, expr)
		if err != nil {
			eng.logger.Printf("var %%%s skipped: %v", a.Name, err)
			return
		}
		eng.setVar(fr, a.Name, StringValue(unquoteText(value)), a.Const)
	}
}

func (eng *Engine) execElementAssign(fr *frame, a *parser.Action) {
	val, ok := fr.scope.get(a.Name)
	if !ok || val.Kind != ValueArray || val.Arr == nil {
		eng.logger.Printf("%%%s is not an array, element assignment ignored", a.Name)
		return
	}
	idxText, err := eng.substitute(fr, a.Index)
	if err != nil {
		return
	}
	idx, err := strconv.Atoi(strings.TrimSpace(idxText))
	if err != nil {
		return
	}
	value, err := eng.substitute(fr, a.Args[0])
	if err != nil {
		eng.logger.Printf("%%%s[%d] skipped: %v", a.Name, idx, err)
		return
	}
	val.Arr.Set(idx, StringValue(unquoteText(value)))
}

func (eng *Engine) execArith(fr *frame, a *parser.Action) {
	current := 0
	if val, ok := fr.scope.get(a.Name); ok {
		current, _ = strconv.Atoi(val.text())
	}

	next := current
	switch a.Op {
	case "++":
		next = current + 1
	case "--":
		next = current - 1
	case "+=":
		next = current + eng.evalArith(fr, a.Args[0])
	case "-=":
		next = current - eng.evalArith(fr, a.Args[0])
	case "*=":
		next = current * eng.evalArith(fr, a.Args[0])
	case "/=":
		if d := eng.evalArith(fr, a.Args[0]); d != 0 {
			next = current / d
		}
	case "=":
		next = eng.evalArith(fr, a.Args[0])
	}

	eng.setVar(fr, a.Name, StringValue(strconv.Itoa(next)), false)
}

func (eng *Engine) execIsupport(fr *frame, a *parser.Action) {
	decl, err := eng.substitute(fr, a.Args[0])
	if err != nil || decl == "" {
		return
	}
	token, value, _ := strings.Cut(decl, "=")
	eng.host.RegisterIsupport(token, value)
}

// setVar writes through the frame scope, logging when a const binding
// refuses the write.
func (eng *Engine) setVar(fr *frame, name string, value Value, isConst bool) {
	if !fr.scope.set(name, value, isConst) {
		eng.logger.Printf("attempt to modify const variable %%%s ignored", cleanName(name))
	}
}

// parseArrayLiteral builds an array from "[a, \"b c\", $client, %other]".
// Entity references stay references; everything else becomes a string.
func (eng *Engine) parseArrayLiteral(fr *frame, text string) *Array {
	arr := NewArray()
	inner := strings.TrimSpace(text)
	inner = strings.TrimPrefix(inner, "[")
	inner = strings.TrimSuffix(inner, "]")
	if strings.TrimSpace(inner) == "" {
		return arr
	}

	for _, elem := range splitTopLevel(inner, ',') {
		elem = strings.TrimSpace(elem)
		switch {
		case elem == "":
			continue
		case strings.HasPrefix(elem, "\""):
			arr.Push(StringValue(unquoteText(elem)))
		case elem == "$client" && fr.client != "":
			arr.Push(ClientValue(fr.client))
		case (elem == "$chan" || elem == "$channel") && fr.channel != "":
			arr.Push(ChannelValue(fr.channel))
		case strings.HasPrefix(elem, "%"):
			if val, ok := fr.scope.get(elem); ok {
				arr.Push(val)
			} else {
				arr.Push(StringValue(nullLiteral))
			}
		case strings.HasPrefix(elem, "$"):
			if value, err := eng.substitute(fr, elem); err == nil {
				arr.Push(StringValue(value))
			} else {
				arr.Push(StringValue(nullLiteral))
			}
		default:
			arr.Push(StringValue(elem))
		}
	}
	return arr
}

// evalCall invokes a built-in or user-defined function. Argument expressions
// are substituted, except that a bare %variable holding an entity reference
// is passed through as the reference itself.
func (eng *Engine) evalCall(fr *frame, name string, rawArgs []string) (Value, error) {
	if fr.callDepth >= eng.limits.MaxCallDepth {
		return Value{}, &LimitError{Resource: "call depth", Current: fr.callDepth, Limit: eng.limits.MaxCallDepth}
	}

	args := make([]Value, 0, len(rawArgs))
	for _, raw := range rawArgs {
		raw = strings.TrimSpace(raw)
		if strings.HasPrefix(raw, "%") {
			if val, ok := fr.scope.get(raw); ok && (val.Kind == ValueClient || val.Kind == ValueChannel) {
				args = append(args, val)
				continue
			}
		}
		text, err := eng.substitute(fr, unquoteText(raw))
		if err != nil {
			return Value{}, err
		}
		args = append(args, StringValue(text))
	}

	if fn := builtinFunction(name); fn != nil {
		return fn(eng, args)
	}

	userFn := eng.findFunction(name)
	if userFn == nil {
		return Value{}, fmt.Errorf("function %q not found", name)
	}
	if len(args) != len(userFn.Params) {
		return Value{}, fmt.Errorf("function %q expects %d parameters, got %d",
			name, len(userFn.Params), len(args))
	}

	// Functions are not closures: the call scope parents the global scope,
	// never the caller's.
	callScope := newScope(eng.global)
	for i, param := range userFn.Params {
		callScope.set(param, args[i], false)
	}
	callFrame := &frame{
		scope:     callScope,
		client:    fr.client,
		channel:   fr.channel,
		extra:     fr.extra,
		params:    fr.params,
		snapshot:  fr.snapshot,
		callDepth: fr.callDepth + 1,
	}

	fl := eng.execActions(callFrame, userFn.Body)
	if fl.kind == flowReturn {
		return StringValue(fl.value), nil
	}
	return StringValue(""), nil
}

// evalCallText is the substitution-side entry: the argument list is still
// one comma-joined string.
func (eng *Engine) evalCallText(fr *frame, name, argText string) (string, error) {
	if !eng.isCallable(name) {
		return "", fmt.Errorf("%w: $%s(...)", errSubstitution, name)
	}
	var args []string
	if strings.TrimSpace(argText) != "" {
		args = splitTopLevel(argText, ',')
	}
	val, err := eng.evalCall(fr, name, args)
	if err != nil {
		return "", err
	}
	return val.text(), nil
}

func (eng *Engine) isCallable(name string) bool {
	return builtinFunction(name) != nil || eng.findFunction(name) != nil
}

// splitCallText recognizes "$name(args)" / "name(args)" and returns the bare
// name plus raw comma-split argument expressions.
func splitCallText(text string) (string, []string, bool) {
	if !strings.HasSuffix(text, ")") {
		return "", nil, false
	}
	open := strings.IndexByte(text, '(')
	if open <= 0 {
		return "", nil, false
	}
	name := strings.TrimPrefix(text[:open], "$")
	if name == "" {
		return "", nil, false
	}
	for i := 0; i < len(name); i++ {
		if !isWordByte(name[i]) {
			return "", nil, false
		}
	}
	inner := text[open+1 : len(text)-1]
	var args []string
	if strings.TrimSpace(inner) != "" {
		args = splitTopLevel(inner, ',')
	}
	return name, args, true
}

// splitTopLevel splits on sep outside quotes and bracket groups.
func splitTopLevel(s string, sep byte) []string {
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

func unquoteText(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

package hookscript

import (
	"strings"
)

// ValueKind discriminates the Value union.
type ValueKind int

const (
	ValueString ValueKind = iota
	ValueArray
	ValueClient
	ValueChannel
)

// Value is what a script variable or array element holds. Entity-typed
// values store the entity's name only; every use resolves the name through
// the Host and degrades to null when the entity is gone.
type Value struct {
	Kind   ValueKind
	Str    string
	Arr    *Array
	Entity string
}

func StringValue(s string) Value { return Value{Kind: ValueString, Str: s} }
func ArrayValue(a *Array) Value { return Value{Kind: ValueArray, Arr: a} }
func ClientValue(name string) Value {
	return Value{Kind: ValueClient, Entity: name}
}
func ChannelValue(name string) Value {
	return Value{Kind: ValueChannel, Entity: name}
}

// text renders a value the way substitution sees it. Entity refs render as
// their name; arrays render as their first-class literal form.
func (v Value) text() string {
	switch v.Kind {
	case ValueString:
		return v.Str
	case ValueClient, ValueChannel:
		return v.Entity
	case ValueArray:
		if v.Arr == nil {
			return nullLiteral
		}
		return v.Arr.String()
	}
	return nullLiteral
}

// Variable is one named slot in a scope.
type Variable struct {
	Name  string
	Value Value
	Const bool
}

// Scope is a chained variable namespace. Lookups walk toward the root;
// writes land in the scope that already holds the name, or the scope the
// write was issued against.
type Scope struct {
	vars   map[string]*Variable
	parent *Scope
}

func newScope(parent *Scope) *Scope {
	return &Scope{vars: make(map[string]*Variable), parent: parent}
}

// cleanName strips the % prefix scripts use on user variables.
func cleanName(name string) string {
	return strings.TrimPrefix(name, "%")
}

func (s *Scope) lookup(name string) *Variable {
	name = cleanName(name)
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.vars[name]; ok {
			return v
		}
	}
	return nil
}

// set writes a variable, updating an existing binding anywhere on the chain
// or creating one in this scope. It reports false when the target is const.
func (s *Scope) set(name string, value Value, isConst bool) bool {
	name = cleanName(name)
	if existing := s.lookup(name); existing != nil {
		if existing.Const {
			return false
		}
		existing.Value = value
		return true
	}
	s.vars[name] = &Variable{Name: name, Value: value, Const: isConst}
	return true
}

func (s *Scope) get(name string) (Value, bool) {
	if v := s.lookup(name); v != nil {
		return v.Value, true
	}
	return Value{}, false
}

// Array is an ordered, growable sequence of values. Indices are zero-based;
// out-of-range reads yield the null sentinel, not an error.
type Array struct {
	elems []Value
}

func NewArray() *Array {
	return &Array{}
}

func (a *Array) Len() int {
	return len(a.elems)
}

func (a *Array) Push(v Value) {
	a.elems = append(a.elems, v)
}

func (a *Array) Get(index int) (Value, bool) {
	if index < 0 || index >= len(a.elems) {
		return Value{}, false
	}
	return a.elems[index], true
}

// Set grows the array as needed, filling any gap with empty strings.
func (a *Array) Set(index int, v Value) {
	if index < 0 {
		return
	}
	for len(a.elems) <= index {
		a.elems = append(a.elems, StringValue(""))
	}
	a.elems[index] = v
}

func (a *Array) String() string {
	var out strings.Builder
	out.WriteString("[")
	for i, e := range a.elems {
		if i > 0 {
			out.WriteString(", ")
		}
		out.WriteString(e.text())
	}
	out.WriteString("]")
	return out.String()
}

package hookscript

import (
	"errors"
	"io"
	"log"
	"testing"
)

func TestScopeChain(t *testing.T) {
	root := newScope(nil)
	root.set("shared", StringValue("root"), false)
	root.set("fixed", StringValue("1"), true)

	child := newScope(root)

	// Lookups walk toward the root.
	if v, ok := child.get("shared"); !ok || v.Str != "root" {
		t.Errorf("child lookup = %v, %v", v, ok)
	}

	// Writes to an inherited name land on the existing binding.
	child.set("shared", StringValue("updated"), false)
	if v, _ := root.get("shared"); v.Str != "updated" {
		t.Errorf("write through child did not reach root binding: %v", v)
	}

	// New names land in the writing scope only.
	child.set("local", StringValue("x"), false)
	if _, ok := root.get("local"); ok {
		t.Error("child-local variable visible from root")
	}

	// Const bindings refuse writes wherever they live.
	if child.set("fixed", StringValue("2"), false) {
		t.Error("const write reported success")
	}
	if v, _ := child.get("fixed"); v.Str != "1" {
		t.Errorf("const value changed to %v", v)
	}

	// The % prefix is cosmetic.
	if v, ok := child.get("%shared"); !ok || v.Str != "updated" {
		t.Errorf("%%-prefixed lookup = %v, %v", v, ok)
	}
}

func TestArraySetGapFill(t *testing.T) {
	arr := NewArray()
	arr.Push(StringValue("a"))
	arr.Set(3, StringValue("d"))

	if arr.Len() != 4 {
		t.Fatalf("Len = %d, want 4", arr.Len())
	}
	if v, ok := arr.Get(2); !ok || v.Str != "" {
		t.Errorf("gap element = %v, %v", v, ok)
	}
	if _, ok := arr.Get(4); ok {
		t.Error("out-of-range read succeeded")
	}
	if _, ok := arr.Get(-1); ok {
		t.Error("negative index read succeeded")
	}
	if got := arr.String(); got != "[a, , , d]" {
		t.Errorf("String() = %q", got)
	}
}

func TestValueText(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"string", StringValue("hi"), "hi"},
		{"client ref", ClientValue("alice"), "alice"},
		{"channel ref", ChannelValue("#lobby"), "#lobby"},
		{"nil array", Value{Kind: ValueArray}, "$null"},
	}
	for _, tt := range tests {
		if got := tt.v.text(); got != tt.want {
			t.Errorf("%s: text() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestIsFalsy(t *testing.T) {
	falsy := []string{"", "0", "$false", "false", "$null", "null"}
	for _, s := range falsy {
		if !isFalsy(s) {
			t.Errorf("isFalsy(%q) = false", s)
		}
	}
	truthy := []string{"1", "-1", "yes", "$true", "true", "00"}
	for _, s := range truthy {
		if isFalsy(s) {
			t.Errorf("isFalsy(%q) = true", s)
		}
	}
}

func TestNormalizeLiteral(t *testing.T) {
	if normalizeLiteral("$true") != normalizeLiteral("true") {
		t.Error("$true and true should compare equal")
	}
	if normalizeLiteral("$null") != normalizeLiteral("") {
		t.Error("the empty string is the null value")
	}
	if normalizeLiteral("$false") == normalizeLiteral("$null") {
		t.Error("false and null must stay distinct")
	}
	if normalizeLiteral("other") != "other" {
		t.Error("ordinary strings must pass through untouched")
	}
}

func TestEvalArith(t *testing.T) {
	eng := New(Config{Logger: log.New(io.Discard, "", 0)})
	fr := &frame{scope: newScope(eng.global)}

	tests := []struct {
		expr string
		want int
	}{
		{"7", 7},
		{"2 + 3", 5},
		{"2 + 3 * 4", 20}, // left to right, no precedence
		{"3 - 10", -7},
		{"-5 + 2", -3},
		{"10 / 0", 10}, // zero divisor skipped
		{"20 / 4 - 1", 4},
		{"", 0},
	}
	for _, tt := range tests {
		if got := eng.evalArith(fr, tt.expr); got != tt.want {
			t.Errorf("evalArith(%q) = %d, want %d", tt.expr, got, tt.want)
		}
	}
}

func TestEvalArithWithVariables(t *testing.T) {
	eng := New(Config{Logger: log.New(io.Discard, "", 0)})
	fr := &frame{scope: newScope(eng.global)}
	fr.scope.set("n", StringValue("6"), false)

	if got := eng.evalArith(fr, "%n * 7"); got != 42 {
		t.Errorf("evalArith with variable = %d, want 42", got)
	}
}

func TestLimitError(t *testing.T) {
	err := &LimitError{Resource: "call depth", Current: 64, Limit: 64}
	if !IsLimitError(err) {
		t.Error("IsLimitError should recognize a LimitError")
	}
	if IsLimitError(errors.New("plain")) {
		t.Error("IsLimitError should reject other errors")
	}
	want := "call depth limit exceeded: current=64, limit=64"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

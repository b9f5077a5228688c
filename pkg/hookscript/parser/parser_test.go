package parser

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// ignoreLines strips source positions so AST comparisons stay readable.
var ignoreLines = cmpopts.IgnoreFields(Action{}, "Line")

func TestSplitLines(t *testing.T) {
	src := "// header comment\n\nMSG #lobby hi // trailing\n\tMSG #lobby \"http://example.com\"\n"
	got := SplitLines(src)
	want := []Line{
		{Text: "MSG #lobby hi", Num: 3},
		{Text: "MSG #lobby \"http://example.com\"", Num: 4},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SplitLines mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRuleHeader(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		event  EventKind
		target string
	}{
		{"join channel", "on JOIN:#lobby:{\n}", EventJoin, "#lobby"},
		{"wildcard", "on PRIVMSG:*:{\n}", EventPrivmsg, "*"},
		{"can join", "on CAN_JOIN:#staff:{\n}", EventCanJoin, "#staff"},
		{"command override", "on COMMAND:WHOIS:{\n}", EventCommandOverride, "WHOIS"},
		{"command new", "new COMMAND:LOOKUP:{\n}", EventCommandNew, "LOOKUP"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script, err := ParseScript("test.hs", tt.src)
			if err != nil {
				t.Fatalf("ParseScript: %v", err)
			}
			if len(script.Rules) != 1 {
				t.Fatalf("expected 1 rule, got %d", len(script.Rules))
			}
			rule := script.Rules[0]
			if rule.Event != tt.event || rule.Target != tt.target {
				t.Errorf("got %s:%s, want %s:%s",
					rule.Event, rule.Target, tt.event, tt.target)
			}
		})
	}
}

func TestParseStatements(t *testing.T) {
	tests := []struct {
		name string
		stmt string
		want *Action
	}{
		{"command", "MSG #lobby hello there", &Action{
			Kind: ActionCommand, Name: "MSG", Args: []string{"#lobby", "hello", "there"},
		}},
		{"quoted arg stays one field", `MSG #lobby "hello there"`, &Action{
			Kind: ActionCommand, Name: "MSG", Args: []string{"#lobby", `"hello there"`},
		}},
		{"var decl", "var %nick = $client.name", &Action{
			Kind: ActionVar, Name: "nick", Args: []string{"$client.name"},
		}},
		{"const var decl", `const var %greeting = "hi"`, &Action{
			Kind: ActionVar, Name: "greeting", Const: true, Args: []string{`"hi"`},
		}},
		{"var decl no value", "var %empty", &Action{
			Kind: ActionVar, Name: "empty",
		}},
		{"array literal", "var %mods = [alice, bob]", &Action{
			Kind: ActionVar, Name: "mods", Args: []string{"[alice, bob]"},
		}},
		{"reassignment", "%nick = $1", &Action{
			Kind: ActionVar, Name: "nick", Args: []string{"$1"},
		}},
		{"hyphenated string reassignment", "%mode = foo-bar", &Action{
			Kind: ActionVar, Name: "mode", Args: []string{"foo-bar"},
		}},
		{"arithmetic reassignment", "%total = %total * 2", &Action{
			Kind: ActionArith, Name: "total", Op: "=", Args: []string{"%total * 2"},
		}},
		{"negative literal reassignment", "%delta = -3 + %n", &Action{
			Kind: ActionArith, Name: "delta", Op: "=", Args: []string{"-3 + %n"},
		}},
		{"element assignment", "%mods[0] = carol", &Action{
			Kind: ActionVar, Name: "mods", Index: "0", Args: []string{"carol"},
		}},
		{"increment", "%count++", &Action{
			Kind: ActionArith, Name: "count", Op: "++",
		}},
		{"decrement", "%count--", &Action{
			Kind: ActionArith, Name: "count", Op: "--",
		}},
		{"compound add", "%count += 2", &Action{
			Kind: ActionArith, Name: "count", Op: "+=", Args: []string{"2"},
		}},
		{"arithmetic assignment", "%count = 1 + 2 * 3", &Action{
			Kind: ActionArith, Name: "count", Op: "=", Args: []string{"1 + 2 * 3"},
		}},
		{"bare return", "return", &Action{Kind: ActionReturn}},
		{"return value", "return $true", &Action{
			Kind: ActionReturn, Args: []string{"$true"},
		}},
		{"break", "break", &Action{Kind: ActionBreak}},
		{"continue", "continue", &Action{Kind: ActionContinue}},
		{"call", `$shout("fire drill", #lobby)`, &Action{
			Kind: ActionCall, Name: "shout", Args: []string{"fire drill", "#lobby"},
		}},
		{"cap", "cap example/tag-prefix", &Action{
			Kind: ActionCap, Args: []string{"example/tag-prefix"},
		}},
		{"isupport", "isupport WATCH=128", &Action{
			Kind: ActionIsupport, Args: []string{"WATCH=128"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script, err := ParseScript("test.hs", "on JOIN:*:{\n"+tt.stmt+"\n}")
			if err != nil {
				t.Fatalf("ParseScript: %v", err)
			}
			got := script.Rules[0].Actions
			if diff := cmp.Diff([]*Action{tt.want}, got, ignoreLines); diff != "" {
				t.Errorf("statement AST mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseIfElseChain(t *testing.T) {
	src := `on JOIN:#lobby:{
	if ($client.account != $null) {
		MSG $chan welcome back
	} else if ($client issecure) {
		NOTICE $client.name register with services
	} else {
		NOTICE $client.name use TLS
	}
}`
	script, err := ParseScript("test.hs", src)
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}

	actions := script.Rules[0].Actions
	if len(actions) != 1 || actions[0].Kind != ActionIf {
		t.Fatalf("expected a single if action, got %v", actions)
	}

	first := actions[0]
	wantCond := &Condition{Variable: "$client.account", Operator: "!=", Value: "$null"}
	if diff := cmp.Diff(BoolExpr(wantCond), first.Cond); diff != "" {
		t.Errorf("first condition mismatch (-want +got):\n%s", diff)
	}

	// The else-if nests as a single ActionIf inside Else.
	if len(first.Else) != 1 || first.Else[0].Kind != ActionIf {
		t.Fatalf("expected nested else-if, got %v", first.Else)
	}
	second := first.Else[0]
	wantCond = &Condition{Variable: "$client", Operator: "issecure"}
	if diff := cmp.Diff(BoolExpr(wantCond), second.Cond); diff != "" {
		t.Errorf("else-if condition mismatch (-want +got):\n%s", diff)
	}
	if len(second.Else) != 1 || second.Else[0].Kind != ActionCommand {
		t.Fatalf("expected final else body, got %v", second.Else)
	}
}

func TestParseElseOnNextLine(t *testing.T) {
	src := `on JOIN:*:{
	if ($client isoper) {
		MSG #staff oper joined
	}
	else {
		MSG #lobby hello
	}
}`
	script, err := ParseScript("test.hs", src)
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	act := script.Rules[0].Actions[0]
	if len(act.Else) != 1 {
		t.Fatalf("else on following line not attached: %v", act.Else)
	}
}

func TestParseLoops(t *testing.T) {
	t.Run("Ranged", func(t *testing.T) {
		script, err := ParseScript("test.hs", "on JOIN:*:{\nfor (%i in 1..5) {\nCOUNT %i\n}\n}")
		if err != nil {
			t.Fatalf("ParseScript: %v", err)
		}
		spec := script.Rules[0].Actions[0].Loop
		want := &LoopSpec{Ranged: true, Var: "i", Start: "1", End: "5"}
		if diff := cmp.Diff(want, spec, ignoreLines); diff != "" {
			t.Errorf("loop spec mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("CStyle", func(t *testing.T) {
		script, err := ParseScript("test.hs", "on JOIN:*:{\nfor (var %i = 0; %i < 3; %i++) {\nCOUNT %i\n}\n}")
		if err != nil {
			t.Fatalf("ParseScript: %v", err)
		}
		spec := script.Rules[0].Actions[0].Loop
		if spec.Ranged {
			t.Fatal("expected a C-style loop spec")
		}
		if spec.Init.Kind != ActionVar || spec.Incr.Kind != ActionArith {
			t.Errorf("init/incr misclassified: %v / %v", spec.Init.Kind, spec.Incr.Kind)
		}
		wantCond := &Condition{Variable: "%i", Operator: "<", Value: "3"}
		if diff := cmp.Diff(BoolExpr(wantCond), spec.Cond); diff != "" {
			t.Errorf("loop condition mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("While", func(t *testing.T) {
		script, err := ParseScript("test.hs", "on JOIN:*:{\nwhile (%n > 0) {\n%n--\n}\n}")
		if err != nil {
			t.Fatalf("ParseScript: %v", err)
		}
		if script.Rules[0].Actions[0].Kind != ActionWhile {
			t.Error("while header not recognized")
		}
	})
}

func TestParseFunction(t *testing.T) {
	src := `function $greet($nick, $text) {
	MSG $nick $text
}`
	script, err := ParseScript("test.hs", src)
	if err != nil {
		t.Fatalf("ParseScript: %v", err)
	}
	if len(script.Functions) != 1 {
		t.Fatalf("expected 1 function, got %d", len(script.Functions))
	}
	fn := script.Functions[0]
	if fn.Name != "greet" {
		t.Errorf("function name = %q, want greet", fn.Name)
	}
	if diff := cmp.Diff([]string{"nick", "text"}, fn.Params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
}

func TestParseBoolExpr(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want BoolExpr
	}{
		{"single comparison", "%n == 5",
			&Condition{Variable: "%n", Operator: "==", Value: "5"}},
		{"quoted value", `$client.account == "admin"`,
			&Condition{Variable: "$client.account", Operator: "==", Value: "admin"}},
		{"bare truthiness", "%flag",
			&Condition{Variable: "%flag"}},
		{"predicate without value", "$client issecure",
			&Condition{Variable: "$client", Operator: "issecure"}},
		{"predicate with value", "$client insg staff",
			&Condition{Variable: "$client", Operator: "insg", Value: "staff"}},
		{"negated word operator", "$client !insg staff",
			&Condition{Variable: "$client", Operator: "!insg", Value: "staff"}},
		{"membership", "$client in #lobby",
			&Condition{Variable: "$client", Operator: "in", Value: "#lobby"}},
		{"substring", `$chan.topic has "rules"`,
			&Condition{Variable: "$chan.topic", Operator: "has", Value: "rules"}},
		{"and binds tighter than or", "%a == 1 || %b == 2 && %c == 3",
			&OrExpr{
				Left: &Condition{Variable: "%a", Operator: "==", Value: "1"},
				Right: &AndExpr{
					Left:  &Condition{Variable: "%b", Operator: "==", Value: "2"},
					Right: &Condition{Variable: "%c", Operator: "==", Value: "3"},
				},
			}},
		{"parens override precedence", "(%a == 1 || %b == 2) && %c == 3",
			&AndExpr{
				Left: &ParenExpr{Inner: &OrExpr{
					Left:  &Condition{Variable: "%a", Operator: "==", Value: "1"},
					Right: &Condition{Variable: "%b", Operator: "==", Value: "2"},
				}},
				Right: &Condition{Variable: "%c", Operator: "==", Value: "3"},
			}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBoolExpr(tt.src)
			if err != nil {
				t.Fatalf("ParseBoolExpr(%q): %v", tt.src, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("expression mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown event", "on BOGUS:*:{\n}", "unknown event"},
		{"new with event", "new JOIN:*:{\n}", "'new' only declares commands"},
		{"empty target", "on JOIN::{\n}", "empty target"},
		{"unterminated rule", "on JOIN:*:{\nMSG a b", "unterminated rule"},
		{"top-level junk", "MSG #lobby hi", "unexpected top-level statement"},
		{"missing brace", "on JOIN:*:\n", "must end with '{'"},
		{"unterminated function", "function $f() {\nMSG a b", "unterminated function"},
		{"bad for header", "on JOIN:*:{\nfor (%i over 1..3) {\n}\n}", "malformed for header"},
		{"bad condition", "on JOIN:*:{\nif () {\n}\n}", "bad condition"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScript("bad.hs", tt.src)
			if err == nil {
				t.Fatal("expected a parse error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestNestDepthLimit(t *testing.T) {
	// The rule body counts as depth 1, so MaxNestDepth-1 nested ifs is the
	// deepest shape that still parses.
	nested := func(ifs int) string {
		var b strings.Builder
		b.WriteString("on JOIN:*:{\n")
		for i := 0; i < ifs; i++ {
			b.WriteString("if (%a == 1) {\n")
		}
		b.WriteString("MSG #lobby deep\n")
		for i := 0; i < ifs; i++ {
			b.WriteString("}\n")
		}
		b.WriteString("}\n")
		return b.String()
	}

	if _, err := ParseScript("ok.hs", nested(MaxNestDepth-1)); err != nil {
		t.Errorf("depth at the limit should parse: %v", err)
	}

	_, err := ParseScript("deep.hs", nested(MaxNestDepth))
	if err == nil {
		t.Fatal("expected nesting-depth error")
	}
	if !strings.Contains(err.Error(), "nesting exceeds") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestScriptRoundTrip(t *testing.T) {
	src := `function $shout($text) {
	MSG #lobby $text
}

on CAN_JOIN:#staff:{
	if ($client isoper || $client insg staff) {
		return $true
	}
	var %reason = "Staff only"
	return $false
}

on JOIN:#lobby:{
	const var %greeting = "welcome"
	for (%i in 1..3) {
		COUNT %i
	}
	while (%n > 0) {
		%n--
	}
	KICK $chan $client.name spam
}`
	first, err := ParseScript("round.hs", src)
	if err != nil {
		t.Fatalf("first parse: %v", err)
	}
	second, err := ParseScript("round.hs", first.String())
	if err != nil {
		t.Fatalf("reparse of rendered script: %v\n%s", err, first.String())
	}
	opts := cmp.Options{
		ignoreLines,
		cmpopts.IgnoreFields(Rule{}, "Line"),
		cmpopts.IgnoreFields(Function{}, "Line"),
	}
	if diff := cmp.Diff(first, second, opts); diff != "" {
		t.Errorf("round trip altered the AST (-first +second):\n%s", diff)
	}
}

package hookscript_test

import (
	"fmt"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/chosenoffset/hookscript/pkg/hookscript"
	"github.com/chosenoffset/hookscript/pkg/hookscript/memhost"
)

// newTestEngine builds an engine over a small seeded network: alice (oper,
// identified, chanop in #lobby) and bob (plain member).
func newTestEngine(t *testing.T, limits hookscript.Limits, sources ...string) (*hookscript.Engine, *memhost.Host) {
	t.Helper()

	host := memhost.New("irc.test.net")
	host.AddClient(memhost.ClientState{Nick: "alice", Account: "alice", Modes: "iw"})
	host.AddClient(memhost.ClientState{Nick: "bob"})
	host.AddChannel("#lobby", "general chat")
	host.Join("alice", "#lobby", "o")
	host.Join("bob", "#lobby", "")
	host.SetFlag("alice", hookscript.FlagOper, true)

	eng := hookscript.New(hookscript.Config{
		Host:   host,
		Logger: log.New(io.Discard, "", 0),
		Limits: limits,
	})
	for i, src := range sources {
		if err := eng.LoadScript(fmt.Sprintf("test%d.hs", i), src); err != nil {
			t.Fatalf("LoadScript: %v", err)
		}
	}
	return eng, host
}

func commandNames(ds []memhost.Dispatch) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Command
	}
	return out
}

func TestExecution(t *testing.T) {
	t.Run("IfElseExclusivity", testIfElseExclusivity)
	t.Run("ShortCircuit", testShortCircuit)
	t.Run("RangedFor", testRangedFor)
	t.Run("CStyleForBreakContinue", testCStyleForBreakContinue)
	t.Run("WhileIterationCeiling", testWhileIterationCeiling)
	t.Run("ConstVariable", testConstVariable)
	t.Run("Arrays", testArrays)
	t.Run("Arithmetic", testArithmetic)
	t.Run("UnknownTokenAbortsCommand", testUnknownTokenAbortsCommand)
	t.Run("Predicates", testPredicates)
}

func testIfElseExclusivity(t *testing.T) {
	eng, host := newTestEngine(t, hookscript.Limits{}, `
on JOIN:#lobby:{
	if ($client.account != $null) {
		MSG $chan welcome back, $client.name
	} else if ($client issecure) {
		NOTICE $client.name please identify
	} else {
		NOTICE $client.name use TLS
	}
}`)

	eng.HandleEvent(hookscript.Event{Kind: hookscript.EventJoin, Client: "alice", Channel: "#lobby"})
	eng.HandleEvent(hookscript.Event{Kind: hookscript.EventJoin, Client: "bob", Channel: "#lobby"})

	got := host.Dispatched()
	if len(got) != 2 {
		t.Fatalf("expected exactly one dispatch per join, got %v", got)
	}
	if got[0].Command != "MSG" || got[0].Args[2] != "back," {
		t.Errorf("identified client took the wrong branch: %v", got[0])
	}
	if got[1].Command != "NOTICE" || !strings.Contains(strings.Join(got[1].Args, " "), "TLS") {
		t.Errorf("anonymous client took the wrong branch: %v", got[1])
	}
}

func testShortCircuit(t *testing.T) {
	eng, host := newTestEngine(t, hookscript.Limits{}, `
function $probe($tag) {
	PROBE $tag
	return $true
}

on PRIVMSG:*:{
	if (%true == 1 || $probe(or)) {
		MSG #lobby or-taken
	}
	if (%false == 1 && $probe(and)) {
		MSG #lobby and-taken
	}
}`)

	eng.HandleEvent(hookscript.Event{Kind: hookscript.EventPrivmsg, Client: "bob", Channel: "#lobby"})

	got := host.Dispatched()
	if len(got) != 1 || got[0].Args[1] != "or-taken" {
		t.Fatalf("expected only the or branch to dispatch, got %v", got)
	}
	for _, d := range got {
		if d.Command == "PROBE" {
			t.Errorf("short-circuited operand was evaluated: %v", got)
		}
	}
}

func testRangedFor(t *testing.T) {
	eng, host := newTestEngine(t, hookscript.Limits{}, `
on PRIVMSG:*:{
	for (%i in 1..3) {
		COUNT %i
	}
}`)

	eng.HandleEvent(hookscript.Event{Kind: hookscript.EventPrivmsg, Client: "bob"})

	got := host.Dispatched()
	if len(got) != 3 {
		t.Fatalf("expected 3 iterations, got %v", got)
	}
	for i, d := range got {
		if want := fmt.Sprint(i + 1); d.Args[0] != want {
			t.Errorf("iteration %d dispatched %q, want %q", i, d.Args[0], want)
		}
	}
}

func testCStyleForBreakContinue(t *testing.T) {
	eng, host := newTestEngine(t, hookscript.Limits{}, `
on PRIVMSG:*:{
	for (var %i = 0; %i < 5; %i++) {
		if (%i == 1) {
			continue
		}
		if (%i == 3) {
			break
		}
		COUNT %i
	}
	MSG #lobby after-loop
}`)

	eng.HandleEvent(hookscript.Event{Kind: hookscript.EventPrivmsg, Client: "bob"})

	want := []string{"COUNT", "COUNT", "MSG"}
	got := host.Dispatched()
	if fmt.Sprint(commandNames(got)) != fmt.Sprint(want) {
		t.Fatalf("dispatch sequence %v, want %v", commandNames(got), want)
	}
	if got[0].Args[0] != "0" || got[1].Args[0] != "2" {
		t.Errorf("continue/break skipped the wrong iterations: %v", got)
	}
}

func testWhileIterationCeiling(t *testing.T) {
	eng, host := newTestEngine(t, hookscript.Limits{MaxLoopIterations: 5}, `
on PRIVMSG:*:{
	while (%true == 1) {
		TICK x
	}
	MSG #lobby survived
}`)

	eng.HandleEvent(hookscript.Event{Kind: hookscript.EventPrivmsg, Client: "bob"})

	got := host.Dispatched()
	ticks := 0
	for _, d := range got {
		if d.Command == "TICK" {
			ticks++
		}
	}
	if ticks != 5 {
		t.Errorf("runaway loop ran %d times, want the 5-iteration ceiling", ticks)
	}
	if last := got[len(got)-1]; last.Command != "MSG" {
		t.Errorf("execution did not continue past the stopped loop: %v", got)
	}
}

func testConstVariable(t *testing.T) {
	eng, host := newTestEngine(t, hookscript.Limits{}, `
on PRIVMSG:*:{
	const var %motd = "be kind"
	%motd = changed
	MSG #lobby %motd
}`)

	eng.HandleEvent(hookscript.Event{Kind: hookscript.EventPrivmsg, Client: "bob"})

	got := host.Dispatched()
	if len(got) != 1 || got[0].Args[1] != "be kind" {
		t.Fatalf("const write was not refused: %v", got)
	}
}

func testArrays(t *testing.T) {
	eng, host := newTestEngine(t, hookscript.Limits{}, `
on PRIVMSG:*:{
	var %mods = [alice, "bob c"]
	%mods[3] = dave
	MSG #lobby %mods[0] %mods[3] %mods
}`)

	eng.HandleEvent(hookscript.Event{Kind: hookscript.EventPrivmsg, Client: "bob"})

	got := host.Dispatched()
	if len(got) != 1 {
		t.Fatalf("expected one dispatch, got %v", got)
	}
	args := got[0].Args
	if args[1] != "alice" || args[2] != "dave" {
		t.Errorf("element access wrong: %v", args)
	}
	if args[3] != "[alice, bob c, , dave]" {
		t.Errorf("gap fill or rendering wrong: %q", args[3])
	}
}

func testArithmetic(t *testing.T) {
	eng, host := newTestEngine(t, hookscript.Limits{}, `
on PRIVMSG:*:{
	var %n = 2
	%n += 3
	%n *= 4
	%n--
	%n /= 0
	MSG #lobby %n
}`)

	eng.HandleEvent(hookscript.Event{Kind: hookscript.EventPrivmsg, Client: "bob"})

	got := host.Dispatched()
	if len(got) != 1 || got[0].Args[1] != "19" {
		t.Fatalf("arithmetic chain produced %v, want 19", got)
	}
}

func testUnknownTokenAbortsCommand(t *testing.T) {
	eng, host := newTestEngine(t, hookscript.Limits{}, `
on PRIVMSG:*:{
	MSG #lobby $nonsense
	MSG #lobby ok
}`)

	eng.HandleEvent(hookscript.Event{Kind: hookscript.EventPrivmsg, Client: "bob"})

	got := host.Dispatched()
	if len(got) != 1 || got[0].Args[1] != "ok" {
		t.Fatalf("a bad token should abort only its own command, got %v", got)
	}
}

func testPredicates(t *testing.T) {
	eng, host := newTestEngine(t, hookscript.Limits{}, `
on PRIVMSG:#lobby:{
	if ($client ischanop) {
		TAG chanop
	}
	if ($client in #lobby) {
		TAG member
	}
	if ($client.umodes has w) {
		TAG wallops
	}
	if ($client isoper) {
		TAG oper
	}
}`)

	eng.HandleEvent(hookscript.Event{Kind: hookscript.EventPrivmsg, Client: "alice", Channel: "#lobby"})
	alice := commandNames(host.Dispatched())
	if len(alice) != 4 {
		t.Errorf("alice should satisfy all four predicates, got %v", host.Dispatched())
	}

	host.ClearDispatched()
	eng.HandleEvent(hookscript.Event{Kind: hookscript.EventPrivmsg, Client: "bob", Channel: "#lobby"})
	got := host.Dispatched()
	if len(got) != 1 || got[0].Args[0] != "member" {
		t.Errorf("bob should only be a member, got %v", got)
	}
}

func TestFunctions(t *testing.T) {
	t.Run("ReturnValue", testFunctionReturnValue)
	t.Run("NotClosures", testFunctionsNotClosures)
	t.Run("ArityMismatch", testFunctionArityMismatch)
	t.Run("Builtins", testBuiltinLookups)
}

func testFunctionReturnValue(t *testing.T) {
	eng, host := newTestEngine(t, hookscript.Limits{}, `
function $sum($a, $b) {
	var %s = 0
	%s += $a
	%s += $b
	return %s
}

on PRIVMSG:*:{
	var %r = $sum(2, 3)
	MSG #lobby %r
}`)

	eng.HandleEvent(hookscript.Event{Kind: hookscript.EventPrivmsg, Client: "bob"})

	got := host.Dispatched()
	if len(got) != 1 || got[0].Args[1] != "5" {
		t.Fatalf("$sum(2, 3) produced %v, want 5", got)
	}
}

func testFunctionsNotClosures(t *testing.T) {
	eng, host := newTestEngine(t, hookscript.Limits{}, `
function $leak() {
	return %secret
}

on PRIVMSG:*:{
	var %secret = exposed
	MSG #lobby $leak()
}`)

	eng.HandleEvent(hookscript.Event{Kind: hookscript.EventPrivmsg, Client: "bob"})

	got := host.Dispatched()
	if len(got) != 1 || got[0].Args[1] != "$null" {
		t.Fatalf("caller locals leaked into the function scope: %v", got)
	}
}

func testFunctionArityMismatch(t *testing.T) {
	eng, host := newTestEngine(t, hookscript.Limits{}, `
function $pair($a, $b) {
	return $a
}

on PRIVMSG:*:{
	var %r = $pair(only)
	MSG #lobby %r
}`)

	eng.HandleEvent(hookscript.Event{Kind: hookscript.EventPrivmsg, Client: "bob"})

	// The failed call leaves %r unset, which substitutes as null.
	got := host.Dispatched()
	if len(got) != 1 || got[0].Args[1] != "$null" {
		t.Fatalf("arity mismatch should skip the assignment, got %v", got)
	}
}

func testBuiltinLookups(t *testing.T) {
	eng, host := newTestEngine(t, hookscript.Limits{}, `
new COMMAND:LOOKUP:{
	var %target = $find_client($1)
	if (%target != $false) {
		NOTICE $client.name %target.name is on %target.server
		return
	}
	NOTICE $client.name no such user
}`)

	if !eng.HandleCommand("LOOKUP", "alice", []string{"bob"}) {
		t.Fatal("LOOKUP rule did not run")
	}
	got := host.Dispatched()
	if len(got) != 1 || got[0].Args[1] != "bob" || got[0].Args[4] != "irc.test.net" {
		t.Fatalf("lookup hit produced %v", got)
	}

	host.ClearDispatched()
	eng.HandleCommand("LOOKUP", "alice", []string{"ghost"})
	got = host.Dispatched()
	if len(got) != 1 || got[0].Args[1] != "no" {
		t.Fatalf("lookup miss produced %v", got)
	}
}

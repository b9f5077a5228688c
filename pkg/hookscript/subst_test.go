package hookscript_test

import (
	"testing"

	"github.com/chosenoffset/hookscript/pkg/hookscript"
)

func TestSubstitution(t *testing.T) {
	t.Run("ClientProperties", testClientPropertySubstitution)
	t.Run("ChannelProperties", testChannelPropertySubstitution)
	t.Run("VanishedEntity", testVanishedEntitySubstitution)
	t.Run("Params", testParamSubstitution)
	t.Run("ParamsOutsideCommandRule", testParamsOutsideCommandRule)
	t.Run("EventText", testEventTextSubstitution)
	t.Run("ServerName", testServerNameSubstitution)
}

func testClientPropertySubstitution(t *testing.T) {
	eng, host := newTestEngine(t, hookscript.Limits{}, `
on PRIVMSG:*:{
	INFO $client.name $client.ident $client.host $client.ip $client.server
}`)

	eng.HandleEvent(hookscript.Event{Kind: hookscript.EventPrivmsg, Client: "bob"})

	got := host.Dispatched()
	if len(got) != 1 {
		t.Fatalf("expected one dispatch, got %v", got)
	}
	want := []string{"bob", "bob", "bob.example.net", "127.0.0.1", "irc.test.net"}
	for i, w := range want {
		if got[0].Args[i] != w {
			t.Errorf("arg %d = %q, want %q", i, got[0].Args[i], w)
		}
	}
}

func testChannelPropertySubstitution(t *testing.T) {
	eng, host := newTestEngine(t, hookscript.Limits{}, `
on TOPIC:#lobby:{
	INFO $chan.name $chan.topic $chan.users
}`)

	eng.HandleEvent(hookscript.Event{Kind: hookscript.EventTopic, Client: "alice", Channel: "#lobby"})

	got := host.Dispatched()
	if len(got) != 1 {
		t.Fatalf("expected one dispatch, got %v", got)
	}
	args := got[0].Args
	if args[0] != "#lobby" || args[1] != "general chat" || args[2] != "2" {
		t.Errorf("channel properties wrong: %v", args)
	}
}

func testVanishedEntitySubstitution(t *testing.T) {
	eng, host := newTestEngine(t, hookscript.Limits{}, `
on QUIT:*:{
	INFO $client.name
}`)

	// The quitting client is already gone from the host's tables.
	eng.HandleEvent(hookscript.Event{Kind: hookscript.EventQuit, Client: "ghost"})

	got := host.Dispatched()
	if len(got) != 1 || got[0].Args[0] != "$null" {
		t.Fatalf("vanished client should degrade to null, got %v", got)
	}
}

func testParamSubstitution(t *testing.T) {
	eng, host := newTestEngine(t, hookscript.Limits{}, `
new COMMAND:ECHO:{
	INFO $1 $2-3 $2- $9
}`)

	eng.HandleCommand("ECHO", "alice", []string{"a", "b", "c", "d"})

	got := host.Dispatched()
	if len(got) != 1 {
		t.Fatalf("expected one dispatch, got %v", got)
	}
	want := []string{"a", "b c", "b c d", "$null"}
	for i, w := range want {
		if got[0].Args[i] != w {
			t.Errorf("arg %d = %q, want %q", i, got[0].Args[i], w)
		}
	}
}

func testParamsOutsideCommandRule(t *testing.T) {
	eng, host := newTestEngine(t, hookscript.Limits{}, `
on PRIVMSG:*:{
	INFO $1 $2- tail
}`)

	eng.HandleEvent(hookscript.Event{Kind: hookscript.EventPrivmsg, Client: "bob"})

	// Event rules carry no positional parameters; $N degrades to $null
	// instead of killing the command.
	got := host.Dispatched()
	if len(got) != 1 {
		t.Fatalf("expected one dispatch, got %v", got)
	}
	want := []string{"$null", "$null", "tail"}
	for i, w := range want {
		if got[0].Args[i] != w {
			t.Errorf("arg %d = %q, want %q", i, got[0].Args[i], w)
		}
	}
}

func testEventTextSubstitution(t *testing.T) {
	eng, host := newTestEngine(t, hookscript.Limits{}, `
on PRIVMSG:#lobby:{
	LOGLINE $client.name said: $text
}
on JOIN:#lobby:{
	LOGLINE joined: $text
}`)

	eng.HandleEvent(hookscript.Event{
		Kind: hookscript.EventPrivmsg, Client: "bob", Channel: "#lobby",
		Extra: "hello there",
	})
	eng.HandleEvent(hookscript.Event{Kind: hookscript.EventJoin, Client: "bob", Channel: "#lobby"})

	got := host.Dispatched()
	if len(got) != 2 {
		t.Fatalf("expected two dispatches, got %v", got)
	}
	if got[0].Args[2] != "hello there" {
		t.Errorf("$text lost the message body: %v", got[0].Args)
	}
	if got[1].Args[1] != "$null" {
		t.Errorf("eventless $text should be $null, got %v", got[1].Args)
	}
}

func testServerNameSubstitution(t *testing.T) {
	eng, host := newTestEngine(t, hookscript.Limits{}, `
on PRIVMSG:*:{
	INFO $server
}`)

	eng.HandleEvent(hookscript.Event{Kind: hookscript.EventPrivmsg, Client: "bob"})

	got := host.Dispatched()
	if len(got) != 1 || got[0].Args[0] != "irc.test.net" {
		t.Fatalf("$server substitution wrong: %v", got)
	}
}

package memhost

import (
	"testing"

	"github.com/chosenoffset/hookscript/pkg/hookscript"
)

func newNetwork() *Host {
	h := New("irc.test.net")
	h.AddClient(ClientState{Nick: "alice", Account: "alice"})
	h.AddClient(ClientState{Nick: "bob"})
	h.AddChannel("#lobby", "general chat")
	h.Join("alice", "#lobby", "o")
	h.Join("bob", "#lobby", "")
	return h
}

func TestClientDefaults(t *testing.T) {
	h := newNetwork()
	client, ok := h.FindClient("bob")
	if !ok {
		t.Fatal("bob not found")
	}
	if client.Ident() != "bob" || client.Hostname() != "bob.example.net" || client.IP() != "127.0.0.1" {
		t.Errorf("defaults not applied: %s %s %s", client.Ident(), client.Hostname(), client.IP())
	}
	if client.ServerName() != "irc.test.net" {
		t.Errorf("ServerName = %q", client.ServerName())
	}
}

func TestMembershipQueries(t *testing.T) {
	h := newNetwork()
	alice, _ := h.FindClient("alice")

	if !alice.MemberOf("#lobby") {
		t.Error("alice should be in #lobby")
	}
	if !alice.ChannelStatus("#lobby", "o") {
		t.Error("alice should be chanop")
	}
	if alice.ChannelStatus("#lobby", "v") {
		t.Error("alice holds no voice")
	}
	if got := alice.Channels(); len(got) != 1 || got[0] != "#lobby" {
		t.Errorf("Channels() = %v", got)
	}

	ch, ok := h.FindChannel("#lobby")
	if !ok || ch.UserCount() != 2 || ch.Topic() != "general chat" {
		t.Errorf("channel view wrong: %v %d %q", ok, ch.UserCount(), ch.Topic())
	}
}

func TestFindServer(t *testing.T) {
	h := newNetwork()
	h.AddServer("hub.test.net")

	server, ok := h.FindServer("hub.test.net")
	if !ok {
		t.Fatal("server not found")
	}
	if !server.Is(hookscript.FlagServer) {
		t.Error("server view should carry the server flag")
	}
	if _, ok := h.FindClient("hub.test.net"); !ok {
		t.Error("FindClient should fall back to servers")
	}
}

func TestDispatchSideEffects(t *testing.T) {
	h := newNetwork()

	if err := h.Dispatch("KICK", []string{"#lobby", "bob", "flooding"}); err != nil {
		t.Fatal(err)
	}
	if bob, _ := h.FindClient("bob"); bob.MemberOf("#lobby") {
		t.Error("KICK did not remove membership")
	}

	if err := h.Dispatch("SVSJOIN", []string{"bob", "#lobby"}); err != nil {
		t.Fatal(err)
	}
	if bob, _ := h.FindClient("bob"); !bob.MemberOf("#lobby") {
		t.Error("SVSJOIN did not add membership")
	}

	if err := h.Dispatch("KILL", []string{"bob", "spam"}); err != nil {
		t.Fatal(err)
	}
	if _, ok := h.FindClient("bob"); ok {
		t.Error("KILL did not remove the client")
	}

	got := h.Dispatched()
	if len(got) != 3 || got[0].Command != "KICK" || got[2].Command != "KILL" {
		t.Errorf("dispatch log wrong: %v", got)
	}
}

func TestDispatchHandler(t *testing.T) {
	h := newNetwork()
	var seen []string
	h.SetDispatchHandler(func(command string, args []string) error {
		seen = append(seen, command)
		return nil
	})

	h.Dispatch("MSG", []string{"#lobby", "hi"})
	h.Dispatch("NOTICE", []string{"bob", "hi"})

	if len(seen) != 2 || seen[0] != "MSG" {
		t.Errorf("handler saw %v", seen)
	}
}

func TestRegistrations(t *testing.T) {
	h := newNetwork()
	h.RegisterCapability("example/reaction")
	h.RegisterIsupport("WATCH", "128")
	h.RegisterCommand("LOOKUP", false)
	h.RegisterCommand("WHOIS", true)

	if caps := h.Capabilities(); len(caps) != 1 || caps[0] != "example/reaction" {
		t.Errorf("Capabilities = %v", caps)
	}
	if tokens := h.IsupportTokens(); tokens["WATCH"] != "128" {
		t.Errorf("IsupportTokens = %v", tokens)
	}
	commands := h.Commands()
	if commands["LOOKUP"] || !commands["WHOIS"] {
		t.Errorf("Commands = %v", commands)
	}
}

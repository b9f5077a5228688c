// Package memhost provides an in-memory implementation of hookscript.Host
// with a small mutation API, for tests, demos and embedding experiments.
package memhost

import (
	"strings"
	"sync"

	"github.com/chosenoffset/hookscript/pkg/hookscript"
)

// Host holds a complete chat-network state: clients, channels, memberships.
// All methods are safe for concurrent use.
type Host struct {
	mu         sync.RWMutex
	serverName string
	clients    map[string]*ClientState
	servers    map[string]*ClientState
	channels   map[string]*ChannelState

	caps       []string
	isupport   map[string]string
	commands   map[string]bool
	dispatched []Dispatch
	handler    func(command string, args []string) error
}

// ClientState is the mutable record backing one client. Flags, Caps and
// Groups are sets; Members on the channel side carries member-mode letters.
type ClientState struct {
	Nick     string
	User     string
	Hostname string
	IP       string
	Realname string
	Account  string
	Server   string
	Modes    string

	Flags  map[hookscript.ClientFlag]bool
	Caps   map[string]bool
	Groups map[string]bool
}

// ChannelState is the mutable record backing one channel. Members maps nick
// to member-mode letters such as "o" or "ov".
type ChannelState struct {
	Name    string
	Topic   string
	Members map[string]string
	Invites map[string]bool
	Bans    map[string]bool
}

// Dispatch is one command the engine handed back to the host.
type Dispatch struct {
	Command string
	Args    []string
}

func New(serverName string) *Host {
	return &Host{
		serverName: serverName,
		clients:    make(map[string]*ClientState),
		servers:    make(map[string]*ClientState),
		channels:   make(map[string]*ChannelState),
		isupport:   make(map[string]string),
		commands:   make(map[string]bool),
	}
}

// AddClient registers a client. Zero-value fields get sensible defaults
// derived from the nick.
func (h *Host) AddClient(st ClientState) {
	if st.User == "" {
		st.User = strings.ToLower(st.Nick)
	}
	if st.Hostname == "" {
		st.Hostname = st.User + ".example.net"
	}
	if st.IP == "" {
		st.IP = "127.0.0.1"
	}
	if st.Server == "" {
		st.Server = h.serverName
	}
	if st.Flags == nil {
		st.Flags = make(map[hookscript.ClientFlag]bool)
	}
	if st.Caps == nil {
		st.Caps = make(map[string]bool)
	}
	if st.Groups == nil {
		st.Groups = make(map[string]bool)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[st.Nick] = &st
}

func (h *Host) RemoveClient(nick string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, nick)
	for _, ch := range h.channels {
		delete(ch.Members, nick)
	}
}

func (h *Host) AddServer(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.servers[name] = &ClientState{
		Nick:   name,
		Server: name,
		Flags:  map[hookscript.ClientFlag]bool{hookscript.FlagServer: true},
		Caps:   make(map[string]bool),
		Groups: make(map[string]bool),
	}
}

func (h *Host) AddChannel(name, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.channels[name] = &ChannelState{
		Name:    name,
		Topic:   topic,
		Members: make(map[string]string),
		Invites: make(map[string]bool),
		Bans:    make(map[string]bool),
	}
}

func (h *Host) RemoveChannel(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.channels, name)
}

// Join adds a member with the given member-mode letters ("" for none).
func (h *Host) Join(nick, channel, modes string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.channels[channel]; ok {
		ch.Members[nick] = modes
	}
}

func (h *Host) Part(nick, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.channels[channel]; ok {
		delete(ch.Members, nick)
	}
}

func (h *Host) SetFlag(nick string, flag hookscript.ClientFlag, on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[nick]; ok {
		c.Flags[flag] = on
	}
}

func (h *Host) SetCap(nick, name string, on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[nick]; ok {
		c.Caps[name] = on
	}
}

func (h *Host) AddGroup(nick, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[nick]; ok {
		c.Groups[group] = true
	}
}

func (h *Host) Invite(nick, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.channels[channel]; ok {
		ch.Invites[nick] = true
	}
}

func (h *Host) Ban(nick, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.channels[channel]; ok {
		ch.Bans[nick] = true
	}
}

// SetDispatchHandler installs a hook invoked for every dispatched command,
// after it is recorded.
func (h *Host) SetDispatchHandler(fn func(command string, args []string) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = fn
}

// Dispatched returns every command dispatched so far, in order.
func (h *Host) Dispatched() []Dispatch {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Dispatch(nil), h.dispatched...)
}

func (h *Host) ClearDispatched() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dispatched = nil
}

// Capabilities returns the capability names scripts registered.
func (h *Host) Capabilities() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string(nil), h.caps...)
}

// IsupportTokens returns the ISUPPORT tokens scripts registered.
func (h *Host) IsupportTokens() map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]string, len(h.isupport))
	for k, v := range h.isupport {
		out[k] = v
	}
	return out
}

// Commands returns the scripted commands registered, name to override flag.
func (h *Host) Commands() map[string]bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]bool, len(h.commands))
	for k, v := range h.commands {
		out[k] = v
	}
	return out
}

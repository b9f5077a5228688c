package memhost

import (
	"strings"

	"github.com/chosenoffset/hookscript/pkg/hookscript"
)

// clientView implements hookscript.Client over shared state; every method
// takes the host read lock so views stay valid across mutations.
type clientView struct {
	h  *Host
	st *ClientState
}

func (v clientView) Name() string { return v.st.Nick }

func (v clientView) Ident() string {
	v.h.mu.RLock()
	defer v.h.mu.RUnlock()
	return v.st.User
}

func (v clientView) Hostname() string {
	v.h.mu.RLock()
	defer v.h.mu.RUnlock()
	return v.st.Hostname
}

func (v clientView) IP() string {
	v.h.mu.RLock()
	defer v.h.mu.RUnlock()
	return v.st.IP
}

func (v clientView) Gecos() string {
	v.h.mu.RLock()
	defer v.h.mu.RUnlock()
	return v.st.Realname
}

func (v clientView) Account() string {
	v.h.mu.RLock()
	defer v.h.mu.RUnlock()
	return v.st.Account
}

func (v clientView) ServerName() string {
	v.h.mu.RLock()
	defer v.h.mu.RUnlock()
	return v.st.Server
}

func (v clientView) Channels() []string {
	v.h.mu.RLock()
	defer v.h.mu.RUnlock()
	var out []string
	for name, ch := range v.h.channels {
		if _, ok := ch.Members[v.st.Nick]; ok {
			out = append(out, name)
		}
	}
	return out
}

func (v clientView) Is(flag hookscript.ClientFlag) bool {
	v.h.mu.RLock()
	defer v.h.mu.RUnlock()
	return v.st.Flags[flag]
}

func (v clientView) HasCap(name string) bool {
	v.h.mu.RLock()
	defer v.h.mu.RUnlock()
	return v.st.Caps[name]
}

func (v clientView) HasUserMode(mode string) bool {
	v.h.mu.RLock()
	defer v.h.mu.RUnlock()
	return mode != "" && strings.Contains(v.st.Modes, mode)
}

func (v clientView) MemberOf(channel string) bool {
	v.h.mu.RLock()
	defer v.h.mu.RUnlock()
	ch, ok := v.h.channels[channel]
	if !ok {
		return false
	}
	_, ok = ch.Members[v.st.Nick]
	return ok
}

func (v clientView) ChannelStatus(channel, modes string) bool {
	v.h.mu.RLock()
	defer v.h.mu.RUnlock()
	ch, ok := v.h.channels[channel]
	if !ok {
		return false
	}
	held := ch.Members[v.st.Nick]
	for i := 0; i < len(modes); i++ {
		if strings.IndexByte(held, modes[i]) >= 0 {
			return true
		}
	}
	return false
}

func (v clientView) Banned(channel string) bool {
	v.h.mu.RLock()
	defer v.h.mu.RUnlock()
	ch, ok := v.h.channels[channel]
	return ok && ch.Bans[v.st.Nick]
}

func (v clientView) Invited(channel string) bool {
	v.h.mu.RLock()
	defer v.h.mu.RUnlock()
	ch, ok := v.h.channels[channel]
	return ok && ch.Invites[v.st.Nick]
}

func (v clientView) InSecurityGroup(group string) bool {
	v.h.mu.RLock()
	defer v.h.mu.RUnlock()
	return v.st.Groups[group]
}

type channelView struct {
	h  *Host
	st *ChannelState
}

func (v channelView) Name() string { return v.st.Name }

func (v channelView) Topic() string {
	v.h.mu.RLock()
	defer v.h.mu.RUnlock()
	return v.st.Topic
}

func (v channelView) UserCount() int {
	v.h.mu.RLock()
	defer v.h.mu.RUnlock()
	return len(v.st.Members)
}

func (h *Host) FindClient(name string) (hookscript.Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if st, ok := h.clients[name]; ok {
		return clientView{h: h, st: st}, true
	}
	if st, ok := h.servers[name]; ok {
		return clientView{h: h, st: st}, true
	}
	return nil, false
}

func (h *Host) FindServer(name string) (hookscript.Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if st, ok := h.servers[name]; ok {
		return clientView{h: h, st: st}, true
	}
	return nil, false
}

func (h *Host) FindChannel(name string) (hookscript.Channel, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if st, ok := h.channels[name]; ok {
		return channelView{h: h, st: st}, true
	}
	return nil, false
}

// Dispatch records the command, applies the state change it implies
// (kicks remove members, kills remove clients, joins add members) and then
// invokes the installed handler.
func (h *Host) Dispatch(command string, args []string) error {
	h.mu.Lock()
	h.dispatched = append(h.dispatched, Dispatch{Command: command, Args: append([]string(nil), args...)})
	handler := h.handler

	switch strings.ToUpper(command) {
	case "KICK":
		if len(args) >= 2 {
			if ch, ok := h.channels[args[0]]; ok {
				delete(ch.Members, args[1])
			}
		}
	case "KILL":
		if len(args) >= 1 {
			delete(h.clients, args[0])
			for _, ch := range h.channels {
				delete(ch.Members, args[0])
			}
		}
	case "JOIN", "SVSJOIN", "SAJOIN":
		if len(args) >= 2 {
			if ch, ok := h.channels[args[1]]; ok {
				ch.Members[args[0]] = ""
			}
		}
	}
	h.mu.Unlock()

	if handler != nil {
		return handler(command, args)
	}
	return nil
}

func (h *Host) RegisterCapability(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.caps = append(h.caps, name)
}

func (h *Host) RegisterIsupport(token, value string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.isupport[token] = value
}

func (h *Host) RegisterCommand(name string, override bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands[name] = override
}

func (h *Host) ServerName() string {
	return h.serverName
}

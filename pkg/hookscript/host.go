package hookscript

import (
	"github.com/chosenoffset/hookscript/pkg/hookscript/parser"
)

// EventKind re-exports the parser's event enumeration so embedders never
// import the parser package directly.
type EventKind = parser.EventKind

const (
	EventStart          = parser.EventStart
	EventConnect        = parser.EventConnect
	EventQuit           = parser.EventQuit
	EventCanJoin        = parser.EventCanJoin
	EventJoin           = parser.EventJoin
	EventPart           = parser.EventPart
	EventKick           = parser.EventKick
	EventNick           = parser.EventNick
	EventPrivmsg        = parser.EventPrivmsg
	EventNotice         = parser.EventNotice
	EventTopic          = parser.EventTopic
	EventMode           = parser.EventMode
	EventInvite         = parser.EventInvite
	EventKnock          = parser.EventKnock
	EventAway           = parser.EventAway
	EventOper           = parser.EventOper
	EventKill           = parser.EventKill
	EventUmode          = parser.EventUmode
	EventChanmode       = parser.EventChanmode
	EventChannelCreate  = parser.EventChannelCreate
	EventChannelDestroy = parser.EventChannelDestroy
	EventWhois          = parser.EventWhois
	EventRehash         = parser.EventRehash
	EventAccountLogin   = parser.EventAccountLogin
	EventPreCommand     = parser.EventPreCommand
	EventPostCommand    = parser.EventPostCommand
	EventTklAdd         = parser.EventTklAdd
	EventTklDel         = parser.EventTklDel
	EventSpamfilter     = parser.EventSpamfilter
)

// Event is one host occurrence handed to the engine. Client and Channel are
// entity names, not references; the engine re-resolves them through the Host
// whenever it needs live data, so a stale name simply stops resolving.
type Event struct {
	Kind    EventKind
	Client  string
	Channel string
	// Extra is the event's free-form payload (message body, quit reason,
	// new topic), reachable from scripts as $text.
	Extra string
}

// Decision is the engine's answer to a decision hook such as CanJoin.
type Decision struct {
	Deny   bool
	Reason string
}

// ClientFlag names a boolean property of a client that only the host can
// answer.
type ClientFlag string

const (
	FlagOper        ClientFlag = "oper"
	FlagInvisible   ClientFlag = "invisible"
	FlagRegNick     ClientFlag = "regnick"
	FlagHidden      ClientFlag = "hidden"
	FlagHideOper    ClientFlag = "hideoper"
	FlagSecure      ClientFlag = "secure"
	FlagULine       ClientFlag = "uline"
	FlagLoggedIn    ClientFlag = "loggedin"
	FlagServer      ClientFlag = "server"
	FlagQuarantined ClientFlag = "quarantined"
	FlagShunned     ClientFlag = "shunned"
	FlagVirus       ClientFlag = "virus"
)

// Client is the host's read-only view of a connected client (or server —
// servers answer the same queries). All query methods are fallible in the
// sense that a host may answer false for anything it cannot determine;
// the engine treats false as "predicate not satisfied", never as an error.
type Client interface {
	Name() string
	Ident() string
	Hostname() string
	IP() string
	Gecos() string
	Account() string
	ServerName() string

	// Channels returns the names of every channel the client is on.
	Channels() []string

	Is(flag ClientFlag) bool
	HasCap(name string) bool
	HasUserMode(mode string) bool

	MemberOf(channel string) bool
	// ChannelStatus reports whether the client holds any of the given
	// member-mode letters (o, v, h, a, q) on the channel.
	ChannelStatus(channel, modes string) bool
	Banned(channel string) bool
	Invited(channel string) bool
	InSecurityGroup(group string) bool
}

// Channel is the host's read-only view of a channel.
type Channel interface {
	Name() string
	Topic() string
	UserCount() int
}

// Host is the collaborator surface the engine needs from the embedding
// messaging system. Lookups are by name and may fail; the engine degrades
// to null/false on every miss.
type Host interface {
	FindClient(name string) (Client, bool)
	FindServer(name string) (Client, bool)
	FindChannel(name string) (Channel, bool)

	// Dispatch hands a command plus positional arguments back to the host's
	// command pipeline. The engine never touches host internals directly.
	Dispatch(command string, args []string) error

	// RegisterCapability, RegisterIsupport and RegisterCommand surface
	// script declarations to the host. RegisterCommand with override true
	// asks the host to route an existing command through the engine as
	// well; with false it declares a brand-new command.
	RegisterCapability(name string)
	RegisterIsupport(token, value string)
	RegisterCommand(name string, override bool)

	ServerName() string
}

// ChannelSnapshot is an immutable copy of a channel's surface taken before
// rule execution, for diagnostics only.
type ChannelSnapshot struct {
	Name      string
	Topic     string
	UserCount int
}

func snapshotChannel(ch Channel) *ChannelSnapshot {
	if ch == nil {
		return nil
	}
	return &ChannelSnapshot{Name: ch.Name(), Topic: ch.Topic(), UserCount: ch.UserCount()}
}

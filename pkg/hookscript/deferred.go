package hookscript

import (
	"strings"
	"time"
)

// deferredAction is a destructive command captured during rule execution.
// Entities are recorded by name and re-resolved at drain time; an action
// whose client or channel vanished in the meantime is dropped.
type deferredAction struct {
	command string
	args    []string
	client  string
	channel string
	queued  time.Time
}

// DeferredAction is the read-only view of a queued action exposed to
// inspection surfaces.
type DeferredAction struct {
	Command string
	Args    []string
	Client  string
	Channel string
	Queued  time.Time
}

// destructiveCommands alter connection or membership state and are always
// deferred out of the hook call stack.
var destructiveCommands = map[string]bool{
	"KICK":  true,
	"KILL":  true,
	"KLINE": true,
	"GLINE": true,
	"ZLINE": true,
	"SHUN":  true,
}

// joinDestructiveCommands are additionally deferred while a join event is
// being handled, where forcing a membership change mid-hook would corrupt
// the host's channel state.
var joinDestructiveCommands = map[string]bool{
	"JOIN":    true,
	"SVSJOIN": true,
	"SAJOIN":  true,
}

func (eng *Engine) isDestructive(command string) bool {
	upper := strings.ToUpper(command)
	if destructiveCommands[upper] {
		return true
	}
	return eng.inJoinHook() && joinDestructiveCommands[upper]
}

func (eng *Engine) enqueueDeferred(command string, args []string, client, channel string) {
	eng.deferredMu.Lock()
	eng.deferred = append(eng.deferred, deferredAction{
		command: strings.ToUpper(command),
		args:    args,
		client:  client,
		channel: channel,
		queued:  time.Now(),
	})
	eng.deferredMu.Unlock()
	eng.stats.CommandDeferred(command)
}

// drainDeferred replays the queue newest-first, then clears it. The
// executing flag stops a replayed command's own hooks from draining
// recursively.
func (eng *Engine) drainDeferred() {
	eng.deferredMu.Lock()
	if eng.draining || len(eng.deferred) == 0 {
		eng.deferredMu.Unlock()
		return
	}
	eng.draining = true
	queue := eng.deferred
	eng.deferred = nil
	eng.deferredMu.Unlock()

	defer func() {
		eng.deferredMu.Lock()
		eng.draining = false
		eng.deferredMu.Unlock()
	}()

	for i := len(queue) - 1; i >= 0; i-- {
		eng.replayDeferred(queue[i])
	}
}

func (eng *Engine) replayDeferred(act deferredAction) {
	if act.client != "" {
		if _, ok := eng.host.FindClient(act.client); !ok {
			eng.stats.CommandDropped(act.command)
			return
		}
	}
	if act.channel != "" {
		if _, ok := eng.host.FindChannel(act.channel); !ok {
			eng.stats.CommandDropped(act.command)
			return
		}
	}

	eng.stats.CommandDispatched(act.command)
	if err := eng.host.Dispatch(act.command, act.args); err != nil {
		eng.logger.Printf("deferred %s failed: %v", act.command, err)
	}
}

// DeferredQueue snapshots the pending deferred actions, oldest first.
func (eng *Engine) DeferredQueue() []DeferredAction {
	eng.deferredMu.Lock()
	defer eng.deferredMu.Unlock()
	out := make([]DeferredAction, len(eng.deferred))
	for i, act := range eng.deferred {
		out[i] = DeferredAction{
			Command: act.command,
			Args:    append([]string(nil), act.args...),
			Client:  act.client,
			Channel: act.channel,
			Queued:  act.queued,
		}
	}
	return out
}

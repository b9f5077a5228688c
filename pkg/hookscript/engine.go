package hookscript

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chosenoffset/hookscript/pkg/hookscript/dashboard"
	"github.com/chosenoffset/hookscript/pkg/hookscript/metrics"
	"github.com/chosenoffset/hookscript/pkg/hookscript/parser"
)

// Config configures a scripting engine. Host is the only required field.
type Config struct {
	// Host is the server the engine runs inside.
	Host Host
	// Logger receives script warnings and load diagnostics. Defaults to a
	// logger on stderr with a "hookscript" prefix.
	Logger *log.Logger
	// Limits bounds script execution; zero fields take defaults.
	Limits Limits
	// DashboardAddr, when non-empty, serves the live inspector on that
	// address (for example ":9090").
	DashboardAddr string
}

// Engine loads rule scripts and executes them against host events. It is
// safe for concurrent use; rule execution itself is serialized per event.
type Engine struct {
	host   Host
	logger *log.Logger
	limits Limits

	mutex     sync.RWMutex
	rules     []*parser.Rule
	functions map[string]*parser.Function
	scripts   []*parser.Script
	global    *Scope
	capsSeen  map[string]bool
	running   bool
	stopCh    chan struct{}

	deferredMu sync.Mutex
	deferred   []deferredAction
	draining   bool

	joinHooks atomic.Int32

	stats *metrics.Recorder

	dashboard        *dashboard.Server
	dashboardRunning bool
}

// New creates an engine around the given host. The engine is inert until
// Start is called.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "hookscript ", log.LstdFlags)
	}

	eng := &Engine{
		host:      cfg.Host,
		logger:    logger,
		limits:    cfg.Limits.withDefaults(),
		functions: make(map[string]*parser.Function),
		global:    newGlobalScope(),
		capsSeen:  make(map[string]bool),
		stopCh:    make(chan struct{}),
		stats:     metrics.NewRecorder(),
	}

	if cfg.DashboardAddr != "" {
		eng.dashboard = dashboard.NewServer(cfg.DashboardAddr)
		eng.dashboard.SetRulesProvider(func() []dashboard.RuleInfo {
			return eng.ruleInfo()
		})
		eng.dashboard.SetQueueProvider(func() []dashboard.QueueEntry {
			return eng.queueInfo()
		})
		eng.dashboard.SetStatsProvider(func() metrics.Stats {
			return eng.stats.Snapshot()
		})
	}

	return eng
}

// newGlobalScope seeds the root scope with the constant truth literals
// scripts may reference as %true, %false and %null.
func newGlobalScope() *Scope {
	global := newScope(nil)
	global.set("true", StringValue("1"), true)
	global.set("false", StringValue("0"), true)
	global.set("null", StringValue(""), true)
	return global
}

// Start begins background operation: the deferred-action drain loop and,
// when configured, the dashboard server. Loaded scripts receive their START
// event. Start is idempotent.
func (eng *Engine) Start() {
	eng.mutex.Lock()
	if eng.running {
		eng.mutex.Unlock()
		return
	}
	eng.running = true
	eng.mutex.Unlock()

	if eng.dashboard != nil {
		go func() {
			if err := eng.dashboard.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				eng.logger.Printf("dashboard failed to start: %v", err)
			}
		}()
		eng.mutex.Lock()
		eng.dashboardRunning = true
		eng.mutex.Unlock()
	}

	go eng.drainLoop()

	eng.HandleEvent(Event{Kind: EventStart})
}

// Stop halts background operation. Pending deferred actions are drained
// once before shutdown. Stop is idempotent.
func (eng *Engine) Stop() {
	eng.mutex.Lock()
	if !eng.running {
		eng.mutex.Unlock()
		return
	}
	eng.running = false
	close(eng.stopCh)
	eng.stopCh = make(chan struct{})
	eng.mutex.Unlock()

	eng.drainDeferred()
	if eng.dashboard != nil {
		eng.dashboard.Stop()
	}
}

// IsRunning reports whether Start has been called without a matching Stop.
func (eng *Engine) IsRunning() bool {
	eng.mutex.RLock()
	defer eng.mutex.RUnlock()
	return eng.running
}

func (eng *Engine) drainLoop() {
	eng.mutex.RLock()
	stopCh := eng.stopCh
	eng.mutex.RUnlock()

	ticker := time.NewTicker(eng.limits.DeferredInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			eng.drainDeferred()
		case <-stopCh:
			return
		}
	}
}

// maxScriptSize caps a single script file at 1 MiB.
const maxScriptSize = 1 << 20

// CheckFile parses a script file and reports the first syntax error without
// loading anything.
func CheckFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) > maxScriptSize {
		return fmt.Errorf("%s: script exceeds %d bytes", path, maxScriptSize)
	}
	_, err = parser.ParseScript(path, string(data))
	return err
}

// LoadFile reads and loads one script file.
func (eng *Engine) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return eng.LoadScript(path, string(data))
}

// LoadScript parses source and adds its rules and functions to the engine.
// A function name that is already defined keeps its first definition and
// logs a warning. Command rules are registered with the host immediately.
func (eng *Engine) LoadScript(name, source string) error {
	if len(source) > maxScriptSize {
		return fmt.Errorf("%s: script exceeds %d bytes", name, maxScriptSize)
	}
	script, err := parser.ParseScript(name, source)
	if err != nil {
		return err
	}

	eng.mutex.Lock()
	eng.installScript(script)
	eng.mutex.Unlock()
	return nil
}

// Reload atomically replaces every loaded script with the given set,
// keyed name to source. On any parse error nothing changes.
func (eng *Engine) Reload(sources map[string]string) error {
	parsed := make([]*parser.Script, 0, len(sources))
	for name, source := range sources {
		script, err := parser.ParseScript(name, source)
		if err != nil {
			return fmt.Errorf("reload aborted: %w", err)
		}
		parsed = append(parsed, script)
	}

	eng.mutex.Lock()
	eng.rules = nil
	eng.scripts = nil
	eng.functions = make(map[string]*parser.Function)
	eng.global = newGlobalScope()
	for _, script := range parsed {
		eng.installScript(script)
	}
	running := eng.running
	eng.mutex.Unlock()

	if running {
		eng.HandleEvent(Event{Kind: EventStart})
	}
	return nil
}

// installScript must run with the write lock held.
func (eng *Engine) installScript(script *parser.Script) {
	eng.scripts = append(eng.scripts, script)
	for _, rule := range script.Rules {
		eng.rules = append(eng.rules, rule)
		switch rule.Event {
		case parser.EventCommandNew:
			eng.host.RegisterCommand(rule.Target, false)
		case parser.EventCommandOverride:
			eng.host.RegisterCommand(rule.Target, true)
		}
	}
	for _, fn := range script.Functions {
		if _, exists := eng.functions[fn.Name]; exists {
			eng.logger.Printf("function $%s redefined in %s, keeping first definition",
				fn.Name, script.Name)
			continue
		}
		eng.functions[fn.Name] = fn
	}
}

// HandleEvent runs every rule subscribed to the event whose target matches.
// A "*" target matches every entity; otherwise the target must equal the
// event's channel or client name.
func (eng *Engine) HandleEvent(ev Event) {
	rules := eng.matchingRules(ev.Kind, ev.Client, ev.Channel)
	eng.stats.EventHandled(ev.Kind.String(), len(rules))
	if len(rules) == 0 {
		return
	}

	if ev.Kind == parser.EventJoin {
		eng.joinHooks.Add(1)
		defer eng.joinHooks.Add(-1)
	}

	for _, rule := range rules {
		eng.runRule(rule, ev, nil)
	}

	// A local join settles membership immediately, so any kick or force-join
	// queued by the hooks replays right away rather than on the next tick.
	if ev.Kind == parser.EventJoin {
		eng.drainDeferred()
	}
}

// CanJoin consults CAN_JOIN rules for a join attempt. A rule returning a
// falsy value denies the join; the denial reason is the rule's %reason
// variable when set. With no subscribed rules the join is allowed.
func (eng *Engine) CanJoin(client, channel string) Decision {
	ev := Event{Kind: parser.EventCanJoin, Client: client, Channel: channel}
	rules := eng.matchingRules(ev.Kind, ev.Client, ev.Channel)
	eng.stats.EventHandled(ev.Kind.String(), len(rules))

	for _, rule := range rules {
		fr, fl := eng.runRule(rule, ev, nil)
		if fl.kind == flowReturn && isFalsy(fl.value) {
			reason := "Cannot join channel"
			if val, ok := fr.scope.get("reason"); ok {
				reason = val.text()
			}
			return Decision{Deny: true, Reason: reason}
		}
	}
	return Decision{}
}

// HandleCommand runs the rules registered for a scripted command. Params
// become $1..$N inside the rule bodies. It reports whether any rule ran.
func (eng *Engine) HandleCommand(command, client string, params []string) bool {
	handled := false
	eng.mutex.RLock()
	rules := make([]*parser.Rule, 0, 1)
	for _, rule := range eng.rules {
		if rule.Event != parser.EventCommandNew && rule.Event != parser.EventCommandOverride {
			continue
		}
		if rule.Target == command {
			rules = append(rules, rule)
		}
	}
	eng.mutex.RUnlock()

	ev := Event{Client: client}
	for _, rule := range rules {
		ev.Kind = rule.Event
		eng.runRule(rule, ev, params)
		handled = true
	}
	return handled
}

func (eng *Engine) matchingRules(kind EventKind, client, channel string) []*parser.Rule {
	eng.mutex.RLock()
	defer eng.mutex.RUnlock()

	var matched []*parser.Rule
	for _, rule := range eng.rules {
		if rule.Event != kind {
			continue
		}
		if rule.Target == "*" || rule.Target == channel || rule.Target == client {
			matched = append(matched, rule)
		}
	}
	return matched
}

// runRule executes one rule body in a fresh scope layered over the globals.
func (eng *Engine) runRule(rule *parser.Rule, ev Event, params []string) (*frame, flow) {
	fr := &frame{
		scope:   newScope(eng.global),
		client:  ev.Client,
		channel: ev.Channel,
		extra:   ev.Extra,
		params:  params,
	}
	if ev.Channel != "" {
		if ch, ok := eng.host.FindChannel(ev.Channel); ok {
			fr.snapshot = snapshotChannel(ch)
		}
	}

	started := time.Now()
	fl := eng.execActions(fr, rule.Actions)
	eng.stats.RuleExecuted(ev.Kind.String(), time.Since(started))
	if eng.dashboard != nil {
		eng.dashboard.SendEvent(ev.Kind.String(), rule.Target, ev.Client, ev.Channel)
	}
	return fr, fl
}

func (eng *Engine) findFunction(name string) *parser.Function {
	eng.mutex.RLock()
	defer eng.mutex.RUnlock()
	return eng.functions[name]
}

func (eng *Engine) inJoinHook() bool {
	return eng.joinHooks.Load() > 0
}

// addPendingCap registers a capability with the host the first time a cap
// statement names it.
func (eng *Engine) addPendingCap(name string) {
	eng.mutex.Lock()
	seen := eng.capsSeen[name]
	if !seen {
		eng.capsSeen[name] = true
	}
	eng.mutex.Unlock()

	if !seen {
		eng.host.RegisterCapability(name)
	}
}

// Rules returns the loaded rules in load order.
func (eng *Engine) Rules() []*parser.Rule {
	eng.mutex.RLock()
	defer eng.mutex.RUnlock()
	return append([]*parser.Rule(nil), eng.rules...)
}

// Functions returns the loaded user-defined functions.
func (eng *Engine) Functions() []*parser.Function {
	eng.mutex.RLock()
	defer eng.mutex.RUnlock()
	out := make([]*parser.Function, 0, len(eng.functions))
	for _, fn := range eng.functions {
		out = append(out, fn)
	}
	return out
}

// Stats returns a snapshot of execution counters.
func (eng *Engine) Stats() metrics.Stats {
	return eng.stats.Snapshot()
}

func (eng *Engine) ruleInfo() []dashboard.RuleInfo {
	eng.mutex.RLock()
	defer eng.mutex.RUnlock()
	out := make([]dashboard.RuleInfo, len(eng.rules))
	for i, rule := range eng.rules {
		out[i] = dashboard.RuleInfo{
			Event:  rule.Event.String(),
			Target: rule.Target,
			Line:   rule.Line,
		}
	}
	return out
}

func (eng *Engine) queueInfo() []dashboard.QueueEntry {
	queue := eng.DeferredQueue()
	out := make([]dashboard.QueueEntry, len(queue))
	for i, act := range queue {
		out[i] = dashboard.QueueEntry{
			Command: act.Command,
			Args:    act.Args,
			Client:  act.Client,
			Channel: act.Channel,
			Queued:  act.Queued,
		}
	}
	return out
}

package metrics

import "time"

type commandCounters struct {
	dispatched map[string]int64
	deferred   int64
	dropped    int64
}

// CommandDispatched records a host command actually sent.
func (r *Recorder) CommandDispatched(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commandCounts.dispatched[name]++
}

// CommandDeferred records a destructive command entering the replay queue.
func (r *Recorder) CommandDeferred(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commandCounts.deferred++
}

// CommandDropped records a deferred command discarded because its entity
// disappeared before replay.
func (r *Recorder) CommandDropped(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commandCounts.dropped++
}

// Stats is a point-in-time snapshot of the recorder's counters.
type Stats struct {
	EventsHandled     int64            `json:"events_handled"`
	RulesExecuted     int64            `json:"rules_executed"`
	EventsByKind      map[string]int64 `json:"events_by_kind"`
	RulesByKind       map[string]int64 `json:"rules_by_kind"`
	CommandsByName    map[string]int64 `json:"commands_by_name"`
	CommandsDeferred  int64            `json:"commands_deferred"`
	CommandsDropped   int64            `json:"commands_dropped"`
	LastEventKind     string           `json:"last_event_kind"`
	LastEventTime     time.Time        `json:"last_event_time"`
	RuleTimeTotal     time.Duration    `json:"rule_time_total"`
	RuleTimeMax       time.Duration    `json:"rule_time_max"`
	Uptime            time.Duration    `json:"uptime"`
	Timestamp         time.Time        `json:"timestamp"`
}

// Snapshot copies the current counters.
func (r *Recorder) Snapshot() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	stats := Stats{
		EventsHandled:    r.eventsHandled,
		RulesExecuted:    r.rulesExecuted,
		EventsByKind:     make(map[string]int64, len(r.eventsByKind)),
		RulesByKind:      make(map[string]int64, len(r.rulesByKind)),
		CommandsByName:   make(map[string]int64, len(r.commandCounts.dispatched)),
		CommandsDeferred: r.commandCounts.deferred,
		CommandsDropped:  r.commandCounts.dropped,
		LastEventKind:    r.lastEventKind,
		LastEventTime:    r.lastEventTime,
		RuleTimeTotal:    r.ruleTimeTotal,
		RuleTimeMax:      r.ruleTimeMax,
		Uptime:           now.Sub(r.startTime),
		Timestamp:        now,
	}
	for k, v := range r.eventsByKind {
		stats.EventsByKind[k] = v
	}
	for k, v := range r.rulesByKind {
		stats.RulesByKind[k] = v
	}
	for k, v := range r.commandCounts.dispatched {
		stats.CommandsByName[k] = v
	}
	return stats
}

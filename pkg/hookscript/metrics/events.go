package metrics

import (
	"sync"
	"time"
)

// Recorder accumulates execution counters for the engine. All methods are
// safe for concurrent use.
type Recorder struct {
	mu sync.RWMutex

	eventsHandled  int64
	rulesExecuted  int64
	eventsByKind   map[string]int64
	rulesByKind    map[string]int64
	lastEventKind  string
	lastEventTime  time.Time
	lastRuleMatch  time.Time
	ruleTimeTotal  time.Duration
	ruleTimeMax    time.Duration
	commandCounts  commandCounters
	startTime      time.Time
}

func NewRecorder() *Recorder {
	return &Recorder{
		eventsByKind: make(map[string]int64),
		rulesByKind:  make(map[string]int64),
		commandCounts: commandCounters{
			dispatched: make(map[string]int64),
		},
		startTime: time.Now(),
	}
}

// EventHandled records one host event arriving with the number of rules
// that matched it.
func (r *Recorder) EventHandled(kind string, matched int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.eventsHandled++
	r.eventsByKind[kind]++
	r.lastEventKind = kind
	r.lastEventTime = time.Now()
	if matched > 0 {
		r.lastRuleMatch = r.lastEventTime
	}
}

// RuleExecuted records one rule body running to completion and how long
// it took.
func (r *Recorder) RuleExecuted(kind string, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rulesExecuted++
	r.rulesByKind[kind]++
	r.ruleTimeTotal += elapsed
	if elapsed > r.ruleTimeMax {
		r.ruleTimeMax = elapsed
	}
}

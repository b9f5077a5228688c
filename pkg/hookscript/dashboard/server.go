// Package dashboard serves a live inspector for a running script engine:
// the loaded rules, the deferred-action queue and a streaming feed of
// handled events.
package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chosenoffset/hookscript/pkg/hookscript/metrics"
)

type Server struct {
	addr     string
	server   *http.Server
	upgrader websocket.Upgrader

	clients      map[*websocket.Conn]bool
	clientsMutex sync.RWMutex
	maxClients   int

	events chan EventUpdate
	stop   chan struct{}

	mutex       sync.RWMutex
	eventBuffer []EventUpdate

	rulesProvider func() []RuleInfo
	queueProvider func() []QueueEntry
	statsProvider func() metrics.Stats
}

// EventUpdate is one handled host event pushed to connected clients.
type EventUpdate struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"`
	Target    string    `json:"target"`
	Client    string    `json:"client,omitempty"`
	Channel   string    `json:"channel,omitempty"`
}

// RuleInfo describes one loaded rule.
type RuleInfo struct {
	Event  string `json:"event"`
	Target string `json:"target"`
	Line   int    `json:"line"`
}

// QueueEntry is one pending deferred action.
type QueueEntry struct {
	Command string    `json:"command"`
	Args    []string  `json:"args"`
	Client  string    `json:"client,omitempty"`
	Channel string    `json:"channel,omitempty"`
	Queued  time.Time `json:"queued"`
}

func NewServer(addr string) *Server {
	return &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return r.Header.Get("Origin") == ""
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients:    make(map[*websocket.Conn]bool),
		maxClients: 100,
		events:     make(chan EventUpdate, 100),
		stop:       make(chan struct{}),
	}
}

func (s *Server) SetRulesProvider(fn func() []RuleInfo) { s.rulesProvider = fn }

func (s *Server) SetQueueProvider(fn func() []QueueEntry) { s.queueProvider = fn }

func (s *Server) SetStatsProvider(fn func() metrics.Stats) { s.statsProvider = fn }

func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/rules", s.handleRules)
	mux.HandleFunc("/api/queue", s.handleQueue)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/events", s.handleRecentEvents)
	mux.HandleFunc("/ws", s.handleWebSocket)

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	go s.broadcast()

	log.Printf("Starting script inspector on %s", s.addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop() error {
	close(s.stop)
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

// SendEvent queues one handled event for broadcast. Drops the event when
// the channel is full so script execution never blocks on the inspector.
func (s *Server) SendEvent(event, target, client, channel string) {
	update := EventUpdate{
		Timestamp: time.Now(),
		Event:     event,
		Target:    target,
		Client:    client,
		Channel:   channel,
	}
	select {
	case s.events <- update:
	default:
	}
}

func (s *Server) broadcast() {
	for {
		select {
		case update := <-s.events:
			s.mutex.Lock()
			s.eventBuffer = append(s.eventBuffer, update)
			if len(s.eventBuffer) > 200 {
				s.eventBuffer = s.eventBuffer[len(s.eventBuffer)-200:]
			}
			s.mutex.Unlock()
			s.broadcastJSON(map[string]any{"type": "event", "data": update})
		case <-s.stop:
			return
		}
	}
}

func (s *Server) broadcastJSON(payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	s.clientsMutex.Lock()
	defer s.clientsMutex.Unlock()
	for conn := range s.clients {
		conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.clientsMutex.RLock()
	count := len(s.clients)
	s.clientsMutex.RUnlock()
	if count >= s.maxClients {
		http.Error(w, "too many clients", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.clientsMutex.Lock()
	s.clients[conn] = true
	s.clientsMutex.Unlock()

	go func() {
		defer func() {
			s.clientsMutex.Lock()
			delete(s.clients, conn)
			s.clientsMutex.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	var rules []RuleInfo
	if s.rulesProvider != nil {
		rules = s.rulesProvider()
	}
	writeJSON(w, map[string]any{"status": "ok", "data": rules})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	var queue []QueueEntry
	if s.queueProvider != nil {
		queue = s.queueProvider()
	}
	writeJSON(w, map[string]any{"status": "ok", "data": queue})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var stats metrics.Stats
	if s.statsProvider != nil {
		stats = s.statsProvider()
	}
	writeJSON(w, map[string]any{"status": "ok", "data": stats})
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	s.mutex.RLock()
	events := append([]EventUpdate(nil), s.eventBuffer...)
	s.mutex.RUnlock()
	writeJSON(w, map[string]any{"status": "ok", "data": events})
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(indexHTML))
}

const indexHTML = `<!DOCTYPE html>
<html>
<head>
    <title>HookScript Inspector</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 0; padding: 20px; background: #f5f5f5; }
        .header { background: #2c3e50; color: white; padding: 20px; border-radius: 5px; margin-bottom: 20px; }
        .grid { display: grid; grid-template-columns: 1fr 1fr; gap: 20px; }
        .card { background: white; padding: 20px; border-radius: 5px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .events-list { max-height: 400px; overflow-y: auto; }
        .event { padding: 8px; margin: 4px 0; border-left: 4px solid #3498db; background: #ecf0f1; font-family: monospace; font-size: 0.9em; }
        .timestamp { font-size: 0.8em; color: #7f8c8d; }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: 6px 10px; border-bottom: 1px solid #ecf0f1; font-size: 0.9em; }
        th { color: #7f8c8d; }
    </style>
</head>
<body>
    <div class="header">
        <h1>HookScript Inspector</h1>
        <p>Loaded rules, deferred actions and live event feed</p>
    </div>
    <div class="grid">
        <div class="card">
            <h3>Loaded Rules</h3>
            <table id="rules-table">
                <tr><th>Event</th><th>Target</th><th>Line</th></tr>
            </table>
        </div>
        <div class="card">
            <h3>Deferred Queue</h3>
            <table id="queue-table">
                <tr><th>Command</th><th>Client</th><th>Channel</th><th>Queued</th></tr>
            </table>
        </div>
        <div class="card">
            <h3>Counters</h3>
            <pre id="stats">loading...</pre>
        </div>
        <div class="card">
            <h3>Event Feed</h3>
            <div class="events-list" id="events-list"></div>
        </div>
    </div>
    <script>
        const ws = new WebSocket('ws://' + location.host + '/ws');
        ws.onmessage = function(msg) {
            const payload = JSON.parse(msg.data);
            if (payload.type !== 'event') return;
            const ev = payload.data;
            const list = document.getElementById('events-list');
            const div = document.createElement('div');
            div.className = 'event';
            div.innerHTML = '<div>' + ev.event + ' target=' + ev.target +
                (ev.client ? ' client=' + ev.client : '') +
                (ev.channel ? ' channel=' + ev.channel : '') + '</div>' +
                '<div class="timestamp">' + new Date(ev.timestamp).toLocaleTimeString() + '</div>';
            list.insertBefore(div, list.firstChild);
            while (list.children.length > 50) list.removeChild(list.lastChild);
        };

        function refresh() {
            fetch('/api/rules').then(r => r.json()).then(data => {
                const table = document.getElementById('rules-table');
                table.innerHTML = '<tr><th>Event</th><th>Target</th><th>Line</th></tr>';
                (data.data || []).forEach(rule => {
                    const row = table.insertRow();
                    row.insertCell().textContent = rule.event;
                    row.insertCell().textContent = rule.target;
                    row.insertCell().textContent = rule.line;
                });
            });
            fetch('/api/queue').then(r => r.json()).then(data => {
                const table = document.getElementById('queue-table');
                table.innerHTML = '<tr><th>Command</th><th>Client</th><th>Channel</th><th>Queued</th></tr>';
                (data.data || []).forEach(entry => {
                    const row = table.insertRow();
                    row.insertCell().textContent = entry.command + ' ' + (entry.args || []).join(' ');
                    row.insertCell().textContent = entry.client || '';
                    row.insertCell().textContent = entry.channel || '';
                    row.insertCell().textContent = new Date(entry.queued).toLocaleTimeString();
                });
            });
            fetch('/api/stats').then(r => r.json()).then(data => {
                document.getElementById('stats').textContent = JSON.stringify(data.data, null, 2);
            });
        }
        refresh();
        setInterval(refresh, 2000);
    </script>
</body>
</html>`

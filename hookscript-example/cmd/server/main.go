// Package main provides the HookScript example application: a miniature
// chat network whose state changes run through a scripting engine, the way
// an IRC server would drive its hook points.
//
// The server runs on :8080 with the following API endpoints:
//   - POST /connect: connect a client {"nick": "...", "account": "..."}
//   - POST /quit: disconnect a client
//   - POST /join: join a channel (scripted CAN_JOIN rules may deny)
//   - POST /part: leave a channel
//   - POST /msg: send a channel message
//   - GET /hookscript/stats: engine execution counters
//   - GET /hookscript/rules: loaded rules
//   - GET /hookscript/queue: pending deferred actions
//
// The script inspector is available at http://localhost:9090
//
// Usage:
//
//	go run hookscript-example/cmd/server/main.go
//
// The server loads rule scripts from ./scripts/*.hs at startup.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/chosenoffset/hookscript/hookscript-example/internal/chathost"
	"github.com/chosenoffset/hookscript/pkg/hookscript"
	"github.com/chosenoffset/hookscript/pkg/hookscript/memhost"
)

func main() {
	host := memhost.New("example.chat")
	seedNetwork(host)

	eng := hookscript.New(hookscript.Config{
		Host:          host,
		DashboardAddr: ":9090",
	})
	if err := loadScripts(eng, "./scripts"); err != nil {
		log.Fatalf("Failed to load scripts: %v", err)
	}

	eng.Start()
	defer eng.Stop()

	network := chathost.NewNetwork(host, eng)

	mux := http.NewServeMux()
	mux.HandleFunc("/connect", network.HandleConnect)
	mux.HandleFunc("/quit", network.HandleQuit)
	mux.HandleFunc("/join", network.HandleJoin)
	mux.HandleFunc("/part", network.HandlePart)
	mux.HandleFunc("/msg", network.HandleMessage)

	mux.HandleFunc("/hookscript/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, eng.Stats())
	})
	mux.HandleFunc("/hookscript/rules", func(w http.ResponseWriter, r *http.Request) {
		type ruleInfo struct {
			Event  string `json:"event"`
			Target string `json:"target"`
			Line   int    `json:"line"`
		}
		var rules []ruleInfo
		for _, rule := range eng.Rules() {
			rules = append(rules, ruleInfo{Event: rule.Event.String(), Target: rule.Target, Line: rule.Line})
		}
		writeJSON(w, rules)
	})
	mux.HandleFunc("/hookscript/queue", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, eng.DeferredQueue())
	})

	server := &http.Server{
		Addr:         ":8080",
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Println("Example chat server on :8080, inspector on :9090")
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// seedNetwork creates the channels and staff the demo scripts expect.
func seedNetwork(host *memhost.Host) {
	host.AddChannel("#lobby", "Welcome to the example network")
	host.AddChannel("#staff", "Operators only")
	host.AddClient(memhost.ClientState{Nick: "opsbot", Account: "opsbot"})
	host.SetFlag("opsbot", hookscript.FlagOper, true)
	host.Join("opsbot", "#staff", "o")
	host.AddGroup("opsbot", "staff")
}

func loadScripts(eng *hookscript.Engine, dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.hs"))
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		log.Printf("No scripts found in %s, running bare", dir)
		return nil
	}
	for _, path := range paths {
		if err := eng.LoadFile(path); err != nil {
			return err
		}
		log.Printf("Loaded %s", path)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

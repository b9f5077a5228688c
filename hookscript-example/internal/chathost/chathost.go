// Package chathost provides a miniature chat network for the HookScript
// example application. It exposes the network over HTTP and routes every
// state change through a scripting engine, the way a real server would call
// its hook points.
//
// The handlers implement:
//   - Client connect and quit
//   - Channel join (subject to scripted CAN_JOIN decisions), part and kick
//   - Channel messages, which scripts observe as PRIVMSG events
//
// State lives in a memhost.Host, so the scripts' entity lookups, deferred
// kicks and membership predicates all operate on the live network.
package chathost

import (
	"encoding/json"
	"net/http"

	"github.com/chosenoffset/hookscript/pkg/hookscript"
	"github.com/chosenoffset/hookscript/pkg/hookscript/memhost"
)

// Network couples the in-memory chat state with the engine observing it.
type Network struct {
	host   *memhost.Host
	engine *hookscript.Engine
}

func NewNetwork(host *memhost.Host, engine *hookscript.Engine) *Network {
	return &Network{host: host, engine: engine}
}

// Host returns the underlying state, for seeding.
func (n *Network) Host() *memhost.Host {
	return n.host
}

// ConnectRequest is the input for /connect.
type ConnectRequest struct {
	Nick     string `json:"nick"`
	Realname string `json:"realname"`
	Account  string `json:"account"`
}

func (n *Network) HandleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Nick == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	n.host.AddClient(memhost.ClientState{
		Nick:     req.Nick,
		Realname: req.Realname,
		Account:  req.Account,
	})
	n.engine.HandleEvent(hookscript.Event{Kind: hookscript.EventConnect, Client: req.Nick})
	w.WriteHeader(http.StatusCreated)
}

// JoinRequest is the input for /join and /part.
type JoinRequest struct {
	Nick    string `json:"nick"`
	Channel string `json:"channel"`
}

func (n *Network) HandleJoin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Nick == "" || req.Channel == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if _, ok := n.host.FindClient(req.Nick); !ok {
		http.Error(w, "no such client", http.StatusNotFound)
		return
	}
	if _, ok := n.host.FindChannel(req.Channel); !ok {
		n.host.AddChannel(req.Channel, "")
		n.engine.HandleEvent(hookscript.Event{Kind: hookscript.EventChannelCreate, Channel: req.Channel})
	}

	if decision := n.engine.CanJoin(req.Nick, req.Channel); decision.Deny {
		writeJSON(w, http.StatusForbidden, map[string]string{
			"status": "denied",
			"reason": decision.Reason,
		})
		return
	}

	n.host.Join(req.Nick, req.Channel, "")
	n.engine.HandleEvent(hookscript.Event{
		Kind:    hookscript.EventJoin,
		Client:  req.Nick,
		Channel: req.Channel,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "joined"})
}

func (n *Network) HandlePart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req JoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Nick == "" || req.Channel == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	n.engine.HandleEvent(hookscript.Event{
		Kind:    hookscript.EventPart,
		Client:  req.Nick,
		Channel: req.Channel,
	})
	n.host.Part(req.Nick, req.Channel)
	w.WriteHeader(http.StatusOK)
}

// MessageRequest is the input for /msg.
type MessageRequest struct {
	Nick    string `json:"nick"`
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

func (n *Network) HandleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Nick == "" || req.Channel == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	n.engine.HandleEvent(hookscript.Event{
		Kind:    hookscript.EventPrivmsg,
		Client:  req.Nick,
		Channel: req.Channel,
		Extra:   req.Text,
	})
	w.WriteHeader(http.StatusOK)
}

func (n *Network) HandleQuit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Nick == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	n.engine.HandleEvent(hookscript.Event{Kind: hookscript.EventQuit, Client: req.Nick})
	n.host.RemoveClient(req.Nick)
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

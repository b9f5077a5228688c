// Package hookscript provides an embeddable event-rule scripting engine for
// IRC-style messaging servers. Scripts subscribe to server events (joins,
// messages, mode changes, connects) and react with server commands, with a
// small imperative language for conditions, variables, loops and functions.
//
// # Quick Start
//
// Implement the Host interface over your server, create an engine and load
// a script:
//
//	eng := hookscript.New(hookscript.Config{Host: myServer})
//	err := eng.LoadScript("greeter", `
//		on JOIN:#welcome:{
//			if ($client.account != $null) {
//				MSG $chan Welcome back, $client.name!
//			}
//		}
//	`)
//	eng.Start()
//
// Then feed it events from your server's hook points:
//
//	eng.HandleEvent(hookscript.Event{
//		Kind:    hookscript.EventJoin,
//		Client:  "alice",
//		Channel: "#welcome",
//	})
//
// # Script Language
//
// A script is a sequence of rule blocks and function definitions:
//
//	on EVENT:target:{ ... }        react to a server event
//	new COMMAND:NAME:{ ... }       define a new server command
//	on COMMAND:NAME:{ ... }        override an existing command
//	function $name($a, $b) { ... } define a callable function
//
// Rule bodies support host commands, if/else chains, while and for loops,
// %variables with arithmetic and arrays, and $-substitutions such as
// $client.name, $chan.topic, $1-$N command parameters and $time.
//
// # Destructive Commands
//
// Commands that disturb connection or membership state (KICK, KILL, bans)
// are never dispatched from inside a hook. They are queued and replayed
// shortly afterwards from a safe point; a queued action whose target has
// since disconnected is silently dropped.
//
// # Safety
//
// Execution is bounded: block nesting, loop iterations and call depth are
// all capped (see Limits), so a buggy or hostile script degrades into log
// warnings instead of wedging the server.
//
// # Inspector
//
// Setting Config.DashboardAddr serves a web inspector with the loaded
// rules, the deferred-action queue and a live feed of handled events.
package hookscript

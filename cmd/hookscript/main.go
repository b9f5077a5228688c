// Command hookscript checks, formats and demo-runs rule scripts outside a
// real server, backed by an in-memory host.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/chosenoffset/hookscript/pkg/hookscript"
	"github.com/chosenoffset/hookscript/pkg/hookscript/memhost"
	"github.com/chosenoffset/hookscript/pkg/hookscript/parser"
)

var version = "v0.3.0"

func main() {
	cmd := &cli.Command{
		Name:    "hookscript",
		Usage:   "Event-rule scripting for IRC-style servers",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:      "check",
				Usage:     "Syntax-check script files",
				ArgsUsage: "<file.hs> [file.hs...]",
				Action:    checkAction,
			},
			{
				Name:      "fmt",
				Usage:     "Print the canonical rendering of a script",
				ArgsUsage: "<file.hs>",
				Action:    fmtAction,
			},
			{
				Name:      "run",
				Usage:     "Run scripts against a demo in-memory network",
				ArgsUsage: "<file.hs> [file.hs...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dashboard",
						Usage: "Inspector listen address",
						Value: ":9090",
					},
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "Delay between synthetic events",
						Value: 2 * time.Second,
					},
				},
				Action: runAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func checkAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 1 {
		return fmt.Errorf("usage: hookscript check <file.hs> [file.hs...]")
	}
	failed := false
	for _, path := range cmd.Args().Slice() {
		if err := hookscript.CheckFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			failed = true
			continue
		}
		fmt.Printf("%s: ok\n", path)
	}
	if failed {
		return fmt.Errorf("syntax errors found")
	}
	return nil
}

func fmtAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 1 {
		return fmt.Errorf("usage: hookscript fmt <file.hs>")
	}
	path := cmd.Args().First()
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	script, err := parser.ParseScript(path, string(data))
	if err != nil {
		return err
	}
	fmt.Print(script.String())
	return nil
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 1 {
		return fmt.Errorf("usage: hookscript run <file.hs> [file.hs...]")
	}

	host := demoNetwork()
	eng := hookscript.New(hookscript.Config{
		Host:          host,
		DashboardAddr: cmd.String("dashboard"),
	})
	for _, path := range cmd.Args().Slice() {
		if err := eng.LoadFile(path); err != nil {
			return err
		}
	}

	eng.Start()
	defer eng.Stop()
	fmt.Printf("engine running, inspector on %s (ctrl-c to stop)\n", cmd.String("dashboard"))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(cmd.Duration("interval"))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			eng.HandleEvent(randomEvent(host))
		case <-sigCh:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

var demoNicks = []string{"alice", "bob", "carol", "dave", "mallory"}
var demoChannels = []string{"#lobby", "#dev", "#help"}

func demoNetwork() *memhost.Host {
	host := memhost.New("demo.example.net")
	host.AddServer("hub.example.net")
	for _, nick := range demoNicks {
		host.AddClient(memhost.ClientState{Nick: nick, Realname: nick + " the demo user"})
	}
	for _, name := range demoChannels {
		host.AddChannel(name, "Demo channel "+name)
	}
	host.Join("alice", "#lobby", "o")
	host.Join("bob", "#lobby", "")
	host.Join("carol", "#dev", "v")
	host.SetFlag("alice", hookscript.FlagOper, true)
	return host
}

func randomEvent(host *memhost.Host) hookscript.Event {
	nick := demoNicks[rand.Intn(len(demoNicks))]
	channel := demoChannels[rand.Intn(len(demoChannels))]
	kinds := []hookscript.EventKind{
		hookscript.EventJoin,
		hookscript.EventPart,
		hookscript.EventPrivmsg,
		hookscript.EventTopic,
		hookscript.EventNick,
	}
	kind := kinds[rand.Intn(len(kinds))]

	switch kind {
	case hookscript.EventJoin:
		host.Join(nick, channel, "")
	case hookscript.EventPart:
		host.Part(nick, channel)
	}

	return hookscript.Event{
		Kind:    kind,
		Client:  nick,
		Channel: channel,
		Extra:   "demo traffic",
	}
}

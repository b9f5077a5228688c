// Command fuzz drives random traffic through the example chat server so the
// loaded scripts have something to react to. Extra scenarios can be dropped
// in as Go plugins exporting a ScenarioInstance symbol.
package main

import (
	"context"
	"log"
	"math/rand"
	"net/http"
	"path/filepath"
	"plugin"
	"time"

	"github.com/chosenoffset/hookscript/hookscript-example/internal/scenario"
)

func loadPlugins(path string) []scenario.Scenario {
	var scenarios []scenario.Scenario
	files, err := filepath.Glob(filepath.Join(path, "*.so"))
	if err != nil {
		log.Fatalf("Failed to scan plugins: %v", err)
	}

	for _, f := range files {
		p, err := plugin.Open(f)
		if err != nil {
			log.Printf("Failed to load plugin %s: %v", f, err)
			continue
		}

		sym, err := p.Lookup("ScenarioInstance")
		if err != nil {
			log.Printf("Failed to find symbol in %s: %v", f, err)
			continue
		}

		sc, ok := sym.(scenario.Scenario)
		if !ok {
			log.Printf("Invalid type in %s", f)
			continue
		}

		log.Printf("Loaded scenario plugin: %s", sc.Name())
		scenarios = append(scenarios, sc)
	}

	return scenarios
}

func main() {
	client := &http.Client{Timeout: 5 * time.Second}
	baseURL := "http://localhost:8080"
	ctx := context.Background()

	scenarios := scenario.Builtin()
	scenarios = append(scenarios, loadPlugins("./plugins")...)

	for {
		sc := scenarios[rand.Intn(len(scenarios))]
		log.Printf("Running scenario: %s", sc.Name())
		if err := sc.Run(ctx, client, baseURL); err != nil {
			log.Printf("Scenario %s failed: %v", sc.Name(), err)
		}

		time.Sleep(500 * time.Millisecond)
	}
}

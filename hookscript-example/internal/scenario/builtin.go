package scenario

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Builtin returns the scenarios compiled into the fuzzer.
func Builtin() []Scenario {
	return []Scenario{
		floodScenario{},
		churnScenario{},
		gateCrashScenario{},
	}
}

func post(ctx context.Context, client *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// floodScenario has one client message a channel fast enough to trip any
// rate-limiting script.
type floodScenario struct{}

func (floodScenario) Name() string { return "flood" }

func (floodScenario) Run(ctx context.Context, client *http.Client, baseURL string) error {
	if err := post(ctx, client, baseURL+"/connect", map[string]string{"nick": "floody"}); err != nil {
		return err
	}
	if err := post(ctx, client, baseURL+"/join", map[string]string{"nick": "floody", "channel": "#lobby"}); err != nil {
		return err
	}
	for i := 0; i < 20; i++ {
		err := post(ctx, client, baseURL+"/msg", map[string]string{
			"nick":    "floody",
			"channel": "#lobby",
			"text":    fmt.Sprintf("spam %d", i),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// churnScenario connects and immediately quits, so any deferred action a
// script queued against the client targets a ghost by replay time.
type churnScenario struct{}

func (churnScenario) Name() string { return "churn" }

func (churnScenario) Run(ctx context.Context, client *http.Client, baseURL string) error {
	for i := 0; i < 5; i++ {
		nick := fmt.Sprintf("ghost%d", i)
		if err := post(ctx, client, baseURL+"/connect", map[string]string{"nick": nick}); err != nil {
			return err
		}
		if err := post(ctx, client, baseURL+"/join", map[string]string{"nick": nick, "channel": "#lobby"}); err != nil {
			return err
		}
		if err := post(ctx, client, baseURL+"/quit", map[string]string{"nick": nick}); err != nil {
			return err
		}
	}
	return nil
}

// gateCrashScenario repeatedly knocks on a channel guarded by a CAN_JOIN
// script.
type gateCrashScenario struct{}

func (gateCrashScenario) Name() string { return "gatecrash" }

func (gateCrashScenario) Run(ctx context.Context, client *http.Client, baseURL string) error {
	if err := post(ctx, client, baseURL+"/connect", map[string]string{"nick": "lurker"}); err != nil {
		return err
	}
	for i := 0; i < 3; i++ {
		if err := post(ctx, client, baseURL+"/join", map[string]string{"nick": "lurker", "channel": "#staff"}); err != nil {
			return err
		}
	}
	return nil
}

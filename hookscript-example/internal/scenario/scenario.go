package scenario

import (
	"context"
	"net/http"
)

// Scenario is one scripted traffic pattern the fuzzer can replay against
// the example server.
type Scenario interface {
	Name() string
	Run(ctx context.Context, client *http.Client, baseURL string) error
}

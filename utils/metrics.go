package utils

import (
	"fmt"
	"os"

	"github.com/DataDog/datadog-go/statsd"
	Logger "github.com/Luismorlan/birdnest/utils/log"
)

// statsdClient is shared by all services, nil until InitStatsd succeeds.
// Emitting through a nil client is a no-op so callers never need to check.
var statsdClient *statsd.Client

// InitStatsd connects to the local Datadog agent. Failure is logged and
// tolerated, metrics are advisory.
func InitStatsd() {
	client, err := statsd.New(fmt.Sprintf("%s:%s", os.Getenv("STATSD_HOST"), os.Getenv("STATSD_PORT")))
	if err != nil {
		Logger.Log.Error("cannot initialize statsd client: ", err)
		return
	}
	statsdClient = client
}

// EmitCounter bumps a counter with the given tags, no-op without a client.
func EmitCounter(name string, tags []string) {
	if statsdClient == nil {
		return
	}
	if err := statsdClient.Incr(name, tags, 1); err != nil {
		Logger.Log.Info("cannot emit counter ", name)
	}
}

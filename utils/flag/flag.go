/*
flag Package set up cli flags shared across services

Usage:

	Flags listed in this package are shared across boundaries and service-agnostic
	For service dependent flags please define in their respective package
*/

package flag

import (
	"flag"
)

const (
	APIServer = "api_server"
)

var (
	IsDevelopment bool
	ServiceName   string
	ByPassAuth    bool
)

func init() {
	flag.BoolVar(&IsDevelopment, "dev", true, "set to true if the current run is for development. default value is true")
	flag.StringVar(&ServiceName, "service", APIServer, "name the service reports to tracing and metrics under")
	flag.BoolVar(&ByPassAuth, "bypass_auth", false, "skip the JWT middleware, for local development only")
}

// Parse parses the command line flags. It must not run at package init time:
// test binaries register their own -test.* flags after package initialization,
// so parsing here would reject them. Call it from main instead.
func Parse() {
	flag.Parse()
}

// Command recon probes IP:port targets concurrently within the open file
// descriptor limit.
package main

import "github.com/anstrom/recon/cmd/cli"

// Build information, set by ldflags.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}

package dbtest

import (
	"flag"
	"os"
	"os/signal"
)

// Inspect keeps containers of failed tests running until the developer hits
// Ctrl+C. The testcontainers reaper still removes them eventually.
var Inspect = flag.Bool("dbtest.inspect", false, "keep test container running for inspection after a failed test completes")

// waitForInspection blocks until SIGINT.
func waitForInspection() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	defer signal.Stop(c)
	<-c
}

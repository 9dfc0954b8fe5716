// Command bridge-demo is a standalone harness for the native bridge
// engine: it can run the run loop over stdin/stdout framed JSON lines
// (serve), or drive a scripted sequence of requests against an in-process
// engine and print each response (handles).
package main

import (
	"fmt"
	"os"

	"github.com/nativebridge/engine/cmd/bridge-demo/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

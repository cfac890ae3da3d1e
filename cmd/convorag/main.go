// Command convorag indexes conversation documents and serves retrieval
// over them from the command line and as an MCP server.
package main

import (
	"context"
	"os"

	"github.com/custodia-labs/convorag/internal/adapters/driving/cli"
)

// Version is set at build time:
//
//	go build -ldflags "-X main.Version=v0.2.0" ./cmd/convorag
var Version = "dev"

func main() {
	cli.SetVersion(Version)
	if err := cli.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/eunio/dailysync/internal/client/cli"
)

// Set with -ldflags "-X main.buildVersion=... -X main.buildDate=...".
var (
	buildVersion = "N/A"
	buildDate    = "N/A"
)

func main() {
	root := cli.NewRootCmd(buildVersion, buildDate)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

package main

import (
	"os"
	"strings"

	"autohedge/internal/hedgectl"
	"autohedge/internal/hedged"
)

// Version is injected by build scripts via -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	args := os.Args[1:]
	if shouldRouteToCtl(args) {
		os.Exit(hedgectl.Run(args))
	}
	os.Exit(hedged.Run(args))
}

// shouldRouteToCtl reports whether args select a batch mode; everything else
// starts the service.
func shouldRouteToCtl(args []string) bool {
	for _, a := range args {
		name := strings.TrimLeft(a, "-")
		if name == a {
			continue
		}
		if i := strings.IndexByte(name, '='); i >= 0 {
			name = name[:i]
		}
		switch name {
		case "backtest", "scan", "history", "report":
			return true
		}
		if strings.HasPrefix(name, "llm-") {
			return true
		}
	}
	return false
}

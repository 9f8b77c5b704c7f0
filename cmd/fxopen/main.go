package main

import (
	"os"

	"fxopen/internal/fxctl"
)

// Version is injected by build scripts via -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	os.Exit(fxctl.Run(os.Args, Version))
}

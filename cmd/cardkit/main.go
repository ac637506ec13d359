package main

import (
	"fmt"
	"os"
	"runtime/debug"
)

// version is set with -ldflags "-X main.version=..." in release builds.
var version = ""

func main() {
	rootCmd.Version = buildVersion()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// buildVersion falls back to the module version recorded by go install.
func buildVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

package main

import (
	"os"

	"github.com/vk/fragmesh/internal/launchcli"
)

// main is the entrypoint for the fragmesh worker-group launcher.
func main() {
	err := launchcli.NewRootCommand().Execute()
	os.Exit(launchcli.GetExitCode(err))
}

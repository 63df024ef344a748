package main

import (
	"github.com/BioHazard786/droprelay/cmd"
	"github.com/BioHazard786/droprelay/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	cmd.Execute()
}

package main

import (
	"mithoo/cmd/cmd"
	"mithoo/internal/logger"
)

func main() {
	logger.Init() // Initialize the logger
	cmd.Execute()
}

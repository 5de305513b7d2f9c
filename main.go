package main

import (
	"os"

	"github.com/jeanhaley/personal-chat-bot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

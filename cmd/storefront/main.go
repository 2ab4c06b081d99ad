package main

import (
	"os"

	"storefront-bff/cmd/storefront/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

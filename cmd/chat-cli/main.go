package main

import (
	"os"

	"stockchat/backend/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

package main

import (
	"os"

	"github.com/dshills/marginalia/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}

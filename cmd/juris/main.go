package main

import (
	"os"

	"github.com/dshills/juris/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}

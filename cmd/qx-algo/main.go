package main

import (
	"os"

	"github.com/quantex/qx-algo/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"

	"etoken-wallet/internal/cli"
)

func main() {
	os.Exit(cli.NewRunner().Run(os.Args[1:]))
}

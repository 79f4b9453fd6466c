package main

import (
	"os"

	"github.com/baaaaaaaka/tunneler/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

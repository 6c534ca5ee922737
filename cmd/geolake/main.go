// Command geolake is the CLI for the geospatial lakehouse storage core.
package main

import (
	"os"

	"github.com/EPajares/goat-sub002/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

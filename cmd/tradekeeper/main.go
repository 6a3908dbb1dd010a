package main

import (
	"os"

	"github.com/rustyeddy/tradekeeper/cmd/tradekeeper/cmd"

	// Trading timezones must resolve on hosts without zoneinfo.
	_ "time/tzdata"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Command rowexport runs export jobs from the command line.
package main

import (
	"fmt"
	"os"

	"rowexport/internal/cli"

	// register every storage backend with the storage factory.
	_ "rowexport/internal/storage/all"

	// time zone conversion must not depend on the host's zoneinfo.
	_ "time/tzdata"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "rowexport: %v\n", err)
		os.Exit(cli.ExitCode(err))
	}
}

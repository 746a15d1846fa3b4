package main

import (
	"fmt"
	"os"

	"github.com/trezcool/classroom/core"
)

func main() {
	c := New()

	var failed bool
	if err := c.Invoke(func(conf *core.Config, logger core.Logger, cli *commandLine, sd *shutdown) {
		logger.Debug(fmt.Sprintf("Application initializing : version %q", conf.Build))
		defer sd.run(logger)

		if err := cli.run(os.Args); err != nil {
			if err != errHelp {
				fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
			}
			failed = true
		}
	}); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
	if failed {
		os.Exit(1)
	}
}

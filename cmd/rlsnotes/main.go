package main

import (
	"errors"
	"fmt"
	"os"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	c := newCLI(os.Stdin, os.Stdout, os.Stderr)
	defer c.close()
	c.rootCmd.SetArgs(args)
	if err := c.rootCmd.Execute(); err != nil {
		var alert *alertError
		if errors.As(err, &alert) {
			fmt.Fprintln(os.Stderr, alert.msg)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		return 1
	}
	return 0
}

// Command libmgen generates polynomial approximations of transcendental
// functions as Go or C source.
package main

import (
	"context"
	"fmt"
	"os"
)

var version = "v0.1.0"

func main() {
	cmd := newCommand(version)
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

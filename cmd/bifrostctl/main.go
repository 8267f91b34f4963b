package main

import (
	"fmt"
	"os"

	rpcerr "github.com/bifrostrpc/bifrost/pkg/errors"
)

func main() {
	rootCmd := newRoot().Command()
	if cmd, err := rootCmd.ExecuteC(); err != nil {
		if err != errFailedOutcome {
			fmt.Fprintln(os.Stderr, "Error:", err.Error())
		}
		switch err := err.(type) {
		case usageError:
			cmd.Println("")
			cmd.Println(cmd.UsageString())
		case *rpcerr.Error:
			fmt.Fprintln(os.Stderr, "")
			fmt.Fprint(os.Stderr, err.Help)
		}
		os.Exit(1)
	}
}

// Command theatre runs discrete-event simulation scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/theatre/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(cli.GetExitCode(err))
}

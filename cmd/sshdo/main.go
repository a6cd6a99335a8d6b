package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/raforg/sshdo/internal/sshdocli"
)

var (
	version = "dev"
)

func main() {
	sshdocli.Version = version
	if err := sshdocli.Main(os.Args); err != nil {
		var exitErr *sshdocli.ExitCodeError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

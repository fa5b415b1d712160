package main

import (
	"fmt"
	"os"

	"github.com/kilianp07/tncsim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tncsim:", err)
		os.Exit(1)
	}
}

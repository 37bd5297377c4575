package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "swissctl:", err)
		os.Exit(1)
	}
}

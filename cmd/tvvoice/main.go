// Command tvvoice runs the voice-controlled TV listings dialogue headless and
// offers offline helpers for the interpreter and the listings source.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

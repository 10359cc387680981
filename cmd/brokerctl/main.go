// Command brokerctl runs the calculator, scorer and persona selector from the
// shell and mints admin tokens for the broker console.
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

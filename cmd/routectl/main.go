// Command routectl runs route service maintenance and imports from the
// command line against the configured stores.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		reportError(os.Stderr, err)
		os.Exit(1)
	}
}

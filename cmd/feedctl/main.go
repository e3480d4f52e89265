// Command feedctl is the operator CLI for the feed database: migrations,
// demo data, one-off scheduler sweeps, account roles and dev tokens.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

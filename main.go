// Package main is the entry point for the gapfill CLI.
package main

import "gapfill.dev/pkg/gapfill/cmd"

func main() {
	cmd.Execute()
}

// Package main implements qctool, an offline companion to the media QC
// server. It groups a media directory and merges QC sheets without
// starting the HTTP server.
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

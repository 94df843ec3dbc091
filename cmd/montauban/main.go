// Package main provides the montauban tooling binary: content validation,
// scripted Council sessions and automated playthroughs.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// Command spamsketch evaluates streaming spam classifiers built on hashed
// feature tables.
package main

import (
	"github.com/szibis/spamsketch/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logging.Fatal("command failed", logging.F("error", err.Error()))
	}
}

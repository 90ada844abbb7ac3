// Command bm2 reads a BM2 battery monitor over Bluetooth LE.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}

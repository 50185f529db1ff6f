// Command eonetctl browses NASA EONET natural events from the terminal and
// runs the explorer HTTP service.
//
// Usage:
//
//	eonetctl categories
//	eonetctl events Wildfires --start 2024-01-01 --limit 20
//	eonetctl locate -- -121.7 39.9
//	eonetctl theme '#FF5500'
//	eonetctl serve
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"
)

func main() {
	if err := NewDefaultFlyapiCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

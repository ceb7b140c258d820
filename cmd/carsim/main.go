package main

import (
	"os"
)

func main() {
	if err := NewCarsimCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

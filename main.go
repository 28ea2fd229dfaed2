package main

import (
	"os"

	"github.com/yous2911/fastrevedkids-sub011/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

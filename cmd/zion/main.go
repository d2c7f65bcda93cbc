package main

import (
	"os"

	"github.com/lugondev/go-zion/cmd/zion/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

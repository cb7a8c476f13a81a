package main

import (
	"fmt"
	"os"

	"github.com/wiredhome/huebridge/cmd"
)

func main() {
	if err := cmd.RootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/coveychat/covey/internal/command"
)

func main() {
	if err := command.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"frameworks/almanac/internal/ctl"
)

func main() {
	if err := ctl.NewRootCmd(nil).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

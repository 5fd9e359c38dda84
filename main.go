package main

import (
	"os"

	"github.com/scan-io-git/gitmirror/cmd"
)

func main() {
	code := cmd.Execute()
	os.Exit(code)
}

package main

import (
	"os"

	"github.com/kilianp07/vcmd/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}

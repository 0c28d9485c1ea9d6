package main

import (
	"github.com/sidkik/samar/cmd"
	"github.com/sidkik/samar/cmd/util"
)

func main() {
	defer util.HandlePanic()
	cmd.Execute()
}

// main.go
//
// Entry point for the tracestat CLI; commands live in cmd/root.go

package main

import (
	"github.com/tracestat/tracestat/cmd"
)

func main() {
	cmd.Execute()
}

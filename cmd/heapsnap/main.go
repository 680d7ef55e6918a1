package main

import (
	"github.com/heap-snapshot/cmd/heapsnap/cmd"
)

func main() {
	cmd.Execute()
}

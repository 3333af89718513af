package main

import (
	"os"

	"docprobe/internal/probe"
)

func main() {
	os.Exit(probe.Main(os.Args[1:], os.Stdout, os.Stderr))
}

package main

import "github.com/cadence-rt/cadence/internal/cli"

func main() {
	cli.Execute()
}

package main

import "water-telemetry/internal/cli"

func main() {
	cli.Execute()
}

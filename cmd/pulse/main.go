package main

import "dugout-pulse/internal/cli"

func main() {
	cli.Execute()
}

package main

import "github.com/gabarita-ai/gabarita/internal/cli"

func main() {
	cli.Execute()
}

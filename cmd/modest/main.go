package main

import "github.com/nhle/modest/internal/cli"

func main() {
	cli.Execute()
}

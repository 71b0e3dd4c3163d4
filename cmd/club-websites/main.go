package main

import "github.com/pfrederiksen/club-websites/internal/cli"

var version = "dev"

func main() {
	cli.Execute(version)
}

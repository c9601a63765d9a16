package main

import "github.com/pfrederiksen/permit-watch/internal/cli"

func main() {
	cli.Execute()
}

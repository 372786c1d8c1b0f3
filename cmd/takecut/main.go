package main

import "github.com/forPelevin/takecut/internal/cli"

func main() {
	cli.Main()
}

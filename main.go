package main

import "github.com/agentic-research/mapmaker/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/incubyte/copilot-stats/cmd"

func main() {
	cmd.Execute()
}

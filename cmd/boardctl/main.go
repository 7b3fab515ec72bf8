package main

import "github.com/OpenTraceLab/boardctl/cmd/boardctl/cmd"

func main() {
	cmd.Execute()
}

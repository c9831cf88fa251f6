package main

import "github.com/OpenTraceLab/OpenTraceBV/cmd/otbv/cmd"

func main() {
	cmd.Execute()
}

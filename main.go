package main

import "github.com/opentab/otab/cmd"

func main() {
	cmd.Execute()
}

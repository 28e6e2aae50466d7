package main

import "github.com/opentopography/terratile/cmd"

func main() {
	cmd.Execute()
}

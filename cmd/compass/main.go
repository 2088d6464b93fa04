package main

import "github.com/compasscal/compass/cmd/compass/cmd"

func main() {
	cmd.Execute()
}

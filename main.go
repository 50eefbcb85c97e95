package main

import "github.com/kozaktomas/artmap/cmd"

func main() {
	cmd.Execute()
}

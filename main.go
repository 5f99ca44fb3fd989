package main

import "github.com/kozaktomas/facelog/cmd"

func main() {
	cmd.Execute()
}

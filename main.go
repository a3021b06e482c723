package main

import "github.com/example/face-identify/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/dndj/dndj/cmd"

func main() {
	cmd.Execute()
}

package main

import (
	"github.com/CristinaFriasLopez/redundans/cmd"
)

func main() {
	cmd.Execute() // initialize cobra commands
}

package main

import "github.com/fakeyudi/rewind/cmd"

func main() {
	cmd.Execute()
}

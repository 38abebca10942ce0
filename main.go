package main

import "github.com/audiolibrelab/wpstatus/cmd"

func main() {
	cmd.Execute()
}

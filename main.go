package main

import "github.com/nemo-app/photoingest/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/openatelier/server/cmd/server/cmd"

func main() {
	cmd.Execute()
}

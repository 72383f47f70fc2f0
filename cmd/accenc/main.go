package main

import "github.com/jmcleod/accenc/cmd/accenc/cmd"

func main() {
	cmd.Execute()
}

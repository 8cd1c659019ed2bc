package main

import "github.com/nxsync/nxsync/cmd"

func main() {
	cmd.Execute()
}

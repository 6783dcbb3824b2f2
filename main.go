package main

import "github.com/kozaktomas/library-sorter/cmd"

func main() {
	cmd.Execute()
}

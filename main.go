package main

import "github.com/rgrab/rgrab/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/lepinkainen/everybook/cmd"

var execute = cmd.Execute

func main() {
	execute()
}

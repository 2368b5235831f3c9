package main

import "github.com/nextlevelbuilder/triagebot/cmd"

func main() {
	cmd.Execute()
}

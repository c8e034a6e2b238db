package main

import "github.com/sunbird89629/pip-plugin/cmd/pipd/commands"

func main() {
	commands.Execute()
}

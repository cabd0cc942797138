package main

import "github.com/recallapp/recall/cmd"

func main() {
	cmd.Execute()
}

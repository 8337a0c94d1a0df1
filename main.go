package main

import "github.com/qbridge/qbridge/cmd"

func main() {
	cmd.Execute()
}

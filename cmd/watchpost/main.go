package main

import "github.com/akulinich/watchpost/cmd/watchpost/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/dustin10/outbox-relay/cmd"

func main() {
	cmd.Execute()
}

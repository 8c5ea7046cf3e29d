package main

import "github.com/readerbot/statskit/cmd/statskit/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/oshokin/doorbell/cmd/doorbell-status/cmd"

func main() {
	cmd.Execute()
}

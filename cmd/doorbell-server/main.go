package main

import "github.com/oshokin/doorbell/cmd/doorbell-server/cmd"

func main() {
	cmd.Execute()
}

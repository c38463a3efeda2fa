package main

import "github.com/oshokin/doorbell/cmd/doorbell-client/cmd"

func main() {
	cmd.Execute()
}

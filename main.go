package main

import (
	cmd "github.com/stablegen/gateway/cmd/stablegen"
)

func main() {
	cmd.Execute()
}

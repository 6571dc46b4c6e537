package main

import (
	"github.com/Doot-Foundation/example/cmd/doot"
)

func main() {
	doot.Execute()
}

package main

import (
	"github.com/otakuflix/adata/cmd"
)

func main() {
	cmd.Execute()
}

package main

import "github.com/voltatlas/cutout/cmd"

func main() {
	cmd.Execute()
}

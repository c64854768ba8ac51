package main

import "github.com/itohio/iaware/iactl/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/smallbiznis/leasebook/cmd/leasebook/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/twiced-technology-gmbh/housekeep/cmd"

func main() {
	cmd.Execute()
}

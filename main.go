package main

import "wtdash/cmd"

func main() {
	cmd.Execute()
}

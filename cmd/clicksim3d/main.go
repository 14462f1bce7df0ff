package main

import "clicksim3d/cmd/clicksim3d/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/MeKo-Tech/boxguard/cmd/boxguard/cmd"

func main() {
	cmd.Execute()
}

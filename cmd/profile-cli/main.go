package main

import "github.com/zfogg/sidechain/profiles/internal/cmd"

func main() {
	cmd.Execute()
}

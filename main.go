package main

import "capsentry/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/tldr-it-stepankutaj/ghostsh/cmd/ghostsh"

func main() {
	ghostsh.Execute()
}

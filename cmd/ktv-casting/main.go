package main

import "github.com/aspromise/ktv-casting/internal/cli"

func main() {
	cli.Execute()
}

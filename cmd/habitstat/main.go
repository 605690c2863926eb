package main

import "github.com/ConfabulousDev/habitstat/internal/cli"

func main() {
	cli.Execute()
}

package main

import "github.com/digggggmori-pixel/ferret-hunt/internal/cli"

func main() {
	cli.Execute()
}

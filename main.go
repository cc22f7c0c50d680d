package main

import "github.com/sugiura/kamishibai/internal/cli"

func main() {
	cli.Main()
}

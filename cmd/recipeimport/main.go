package main

import "github.com/recipebox/backend/internal/cli"

func main() {
	cli.Execute()
}

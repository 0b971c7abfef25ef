package main

import (
	"os"

	"github.com/gustavo/comet-kit/internal/app"
)

func main() {
	runner := app.NewRunner()
	os.Exit(runner.Run(os.Args[1:]))
}

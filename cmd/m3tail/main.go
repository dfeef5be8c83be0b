package main

import (
	"os"

	"github.com/charliek/m3tail/internal/cli"
)

func main() {
	app := cli.NewApp()
	os.Exit(app.Run(os.Args))
}

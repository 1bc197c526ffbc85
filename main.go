package main

import (
	"os"

	"github.com/lariatlabs/dirsync/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}

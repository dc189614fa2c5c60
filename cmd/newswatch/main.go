package main

import (
	"os"

	"horse.fit/newswatch/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}

package main

import (
	"os"

	"horse.fit/tariqi/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}

package main

import (
	"context"
)

func main() {
	app := mustBootstrapGateAPI()
	defer app.Close()

	if err := app.Run(); err != nil && err != context.Canceled {
		panic(err)
	}
}

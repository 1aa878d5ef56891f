package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/kevinbot-io/kevinbot/cmd/kevinbot-supervisor/app"
)

func main() {
	app.NewApp().Run()
}

package main

import (
	"github.com/kevinbot-io/kevinbot/cmd/kevinbotctl/cmd"
)

func main() {
	cmd.Execute()
}

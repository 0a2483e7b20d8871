package main

import (
	"github.com/smallbiznis/leasebook/internal/app"
	"github.com/smallbiznis/leasebook/internal/server"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		app.Core,
		server.Module,
	).Run()
}

package main

import (
	"github.com/smallbiznis/leasebook/internal/app"
	"github.com/smallbiznis/leasebook/internal/scheduler"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		app.Core,
		// No server module.
		scheduler.Loop,
	).Run()
}

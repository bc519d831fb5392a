package main

import (
	"go.uber.org/fx"

	"github.com/greenlane/marketdesk/internal/app"
)

func main() {
	fx.New(app.Module).Run()
}

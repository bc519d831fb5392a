package http

import (
	"go.uber.org/fx"

	buyertransport "github.com/greenlane/marketdesk/internal/transport/http/buyer"
	listingtransport "github.com/greenlane/marketdesk/internal/transport/http/listing"
	markettransport "github.com/greenlane/marketdesk/internal/transport/http/market"
	ordertransport "github.com/greenlane/marketdesk/internal/transport/http/order"
	producttransport "github.com/greenlane/marketdesk/internal/transport/http/product"
	usertransport "github.com/greenlane/marketdesk/internal/transport/http/user"
	vendortransport "github.com/greenlane/marketdesk/internal/transport/http/vendor"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	markettransport.Module,
	vendortransport.Module,
	buyertransport.Module,
	producttransport.Module,
	listingtransport.Module,
	ordertransport.Module,
	usertransport.Module,
)

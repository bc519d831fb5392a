package app

import (
	"go.uber.org/fx"

	"github.com/greenlane/marketdesk/internal/audit"
	"github.com/greenlane/marketdesk/internal/cache"
	"github.com/greenlane/marketdesk/internal/config"
	"github.com/greenlane/marketdesk/internal/database"
	"github.com/greenlane/marketdesk/internal/guard"
	"github.com/greenlane/marketdesk/internal/imagestore"
	"github.com/greenlane/marketdesk/internal/logger"
	"github.com/greenlane/marketdesk/internal/messaging"
	"github.com/greenlane/marketdesk/internal/notify"
	"github.com/greenlane/marketdesk/internal/observability"
	repositorybuyer "github.com/greenlane/marketdesk/internal/repository/buyer"
	repositorylisting "github.com/greenlane/marketdesk/internal/repository/listing"
	repositorymarket "github.com/greenlane/marketdesk/internal/repository/market"
	repositoryorder "github.com/greenlane/marketdesk/internal/repository/order"
	repositoryproduct "github.com/greenlane/marketdesk/internal/repository/product"
	repositoryuser "github.com/greenlane/marketdesk/internal/repository/user"
	repositoryvendor "github.com/greenlane/marketdesk/internal/repository/vendor"
	httpserver "github.com/greenlane/marketdesk/internal/server/http"
	servicebuyer "github.com/greenlane/marketdesk/internal/service/buyer"
	servicelisting "github.com/greenlane/marketdesk/internal/service/listing"
	servicemarket "github.com/greenlane/marketdesk/internal/service/market"
	serviceorder "github.com/greenlane/marketdesk/internal/service/order"
	serviceproduct "github.com/greenlane/marketdesk/internal/service/product"
	serviceuser "github.com/greenlane/marketdesk/internal/service/user"
	servicevendor "github.com/greenlane/marketdesk/internal/service/vendor"
	transporthttp "github.com/greenlane/marketdesk/internal/transport/http"
	"github.com/greenlane/marketdesk/internal/verification"
	"github.com/greenlane/marketdesk/internal/worker"
	workerlifecycle "github.com/greenlane/marketdesk/internal/worker/lifecycle"
	workernotify "github.com/greenlane/marketdesk/internal/worker/notify"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	imagestore.Module,
	notify.Module,

	audit.Module,
	guard.Module,
	verification.Module,

	repositorymarket.Module,
	repositoryvendor.Module,
	repositorybuyer.Module,
	repositoryproduct.Module,
	repositorylisting.Module,
	repositoryuser.Module,
	repositoryorder.Module,

	servicemarket.Module,
	servicevendor.Module,
	servicebuyer.Module,
	serviceproduct.Module,
	servicelisting.Module,
	serviceuser.Module,
	serviceorder.Module,
)

// HTTP wires the HTTP transport on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerlifecycle.Module,
	workernotify.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP

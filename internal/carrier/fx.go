package carrier

import (
	"github.com/dotfilings/dotfilings/internal/carrier/fmcsa"
	"github.com/dotfilings/dotfilings/internal/carrier/repository"
	"github.com/dotfilings/dotfilings/internal/carrier/service"
	"go.uber.org/fx"
)

var Module = fx.Module("carrier.service",
	fx.Provide(repository.Provide),
	fx.Provide(fmcsa.New),
	fx.Provide(service.New),
)

package filing

import (
	"github.com/dotfilings/dotfilings/internal/filing/repository"
	"github.com/dotfilings/dotfilings/internal/filing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("filing.service",
	fx.Provide(repository.Provide),
	fx.Provide(repository.NewDraftSnapshotFinder),
	fx.Provide(service.New),
)

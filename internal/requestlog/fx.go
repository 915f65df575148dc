package requestlog

import (
	"github.com/smallbiznis/taxbook/internal/requestlog/repository"
	"github.com/smallbiznis/taxbook/internal/requestlog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("requestlog",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)

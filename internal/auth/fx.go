package auth

import (
	"github.com/smallbiznis/taxbook/internal/auth/repository"
	"github.com/smallbiznis/taxbook/internal/auth/service"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.ProvideSessionRepository),
	fx.Provide(service.New),
)

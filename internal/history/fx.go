package history

import (
	"github.com/exportflowlabs/exportflow/internal/history/repository"
	"github.com/exportflowlabs/exportflow/internal/history/service"
	"go.uber.org/fx"
)

var Module = fx.Module("history",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)

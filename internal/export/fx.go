package export

import (
	"github.com/exportflowlabs/exportflow/internal/export/repository"
	"github.com/exportflowlabs/exportflow/internal/export/service"
	"go.uber.org/fx"
)

var Module = fx.Module("export",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)

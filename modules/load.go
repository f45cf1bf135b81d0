package modules

import (
	"github.com/campusops/placement/modules/directory"
	"github.com/campusops/placement/modules/placement"
	"github.com/campusops/placement/pkg/application"
)

// BuiltInModules lists the modules every deployment carries. Order matters:
// placement resolves directory services during registration.
var BuiltInModules = []application.Module{
	directory.NewModule(),
	placement.NewModule(),
}

func Load(app application.Application, externalModules ...application.Module) error {
	for _, module := range externalModules {
		if err := module.Register(app); err != nil {
			return err
		}
	}
	return nil
}

package directory

import (
	"embed"

	"github.com/campusops/placement/modules/directory/handlers"
	"github.com/campusops/placement/modules/directory/infrastructure/persistence"
	"github.com/campusops/placement/modules/directory/services"
	"github.com/campusops/placement/pkg/application"
)

//go:embed infrastructure/persistence/schema/directory-schema.sql
var migrationFiles embed.FS

func NewModule() application.Module {
	return &Module{}
}

type Module struct{}

func (m *Module) Register(app application.Application) error {
	app.Migrations().RegisterSchema(&migrationFiles)

	sites := services.NewSiteService(persistence.NewSiteRepository())
	app.RegisterServices(
		services.NewStudentService(persistence.NewStudentRepository()),
		sites,
	)

	handlers.RegisterHistoryHandler(app.EventPublisher(), app.DB(), sites, app.Logger())

	return nil
}

func (m *Module) Name() string {
	return "directory"
}

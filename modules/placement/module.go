package placement

import (
	"embed"

	directoryservices "github.com/campusops/placement/modules/directory/services"
	"github.com/campusops/placement/modules/placement/handlers"
	"github.com/campusops/placement/modules/placement/infrastructure/persistence"
	"github.com/campusops/placement/modules/placement/presentation/controllers"
	"github.com/campusops/placement/modules/placement/services"
	"github.com/campusops/placement/pkg/application"
	"github.com/campusops/placement/pkg/configuration"
	"github.com/campusops/placement/pkg/outbox"
)

//go:embed infrastructure/persistence/schema/placement-schema.sql
var migrationFiles embed.FS

func NewModule() application.Module {
	return &Module{}
}

type Module struct{}

func (m *Module) Register(app application.Application) error {
	app.Migrations().RegisterSchema(&migrationFiles)

	conf := configuration.Use()
	table, err := outbox.ParseIdentifier(conf.Outbox.RelayTable)
	if err != nil {
		return err
	}

	windows := persistence.NewCapacityRepository()
	assignments := persistence.NewAssignmentRepository()
	batches := persistence.NewBatchRepository()
	results := persistence.NewExecutionRepository(outbox.NewPublisher(), table)

	// The directory module registers first; its services back the student and
	// site lookups here.
	students := app.Service(directoryservices.StudentService{}).(*directoryservices.StudentService)
	sites := app.Service(directoryservices.SiteService{}).(*directoryservices.SiteService)

	bus := app.EventPublisher()
	ledger := services.NewLedgerService(windows, conf.Ledger)

	app.RegisterServices(
		ledger,
		services.NewBatchService(batches, assignments, ledger, bus),
		services.NewAssignmentService(assignments, students, bus),
		services.NewSuggestionService(batches, assignments, windows, students, sites, conf.Scoring),
		services.NewExecutionService(batches, assignments, windows, ledger, results, students, bus),
	)

	app.RegisterControllers(
		controllers.NewPlacementAPIController(app),
	)

	handlers.RegisterNotificationHandler(bus, app.Logger())

	return nil
}

func (m *Module) Name() string {
	return "placement"
}

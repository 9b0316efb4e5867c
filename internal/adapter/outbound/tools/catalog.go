package tools

import (
	"time"

	"github.com/krug-dev/krug-mcp/internal/domain/resource"
	"github.com/krug-dev/krug-mcp/internal/domain/task"
	"github.com/krug-dev/krug-mcp/internal/domain/tool"
)

// Deps are the collaborators of the built-in catalogue.
type Deps struct {
	Status    StatusConfig
	Tasks     *task.Registry
	Orders    *OrderBook
	ItemDelay time.Duration
}

// NewCatalog builds the tool registry and resource providers.
func NewCatalog(deps Deps) (*tool.StaticRegistry, resource.Provider, error) {
	if deps.Orders == nil {
		deps.Orders = NewOrderBook()
	}
	reg, err := tool.NewStaticRegistry(
		NewServerStatusTool(deps.Status),
		NewCreateOrderTool(deps.Orders),
		NewWeatherTool(nil),
		NewProcessItemsTool(deps.Tasks, deps.ItemDelay),
		NewGetStatusTool(deps.Tasks),
	)
	if err != nil {
		return nil, nil, err
	}
	return reg, resource.Providers{NewTasksResource(deps.Tasks)}, nil
}

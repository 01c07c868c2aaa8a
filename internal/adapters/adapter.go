package adapters

import (
	"context"

	"github.com/aotal/dicom-api-mcp-project/internal/models"
	"github.com/aotal/dicom-api-mcp-project/internal/progress"
	"github.com/aotal/dicom-api-mcp-project/internal/query"
)

// PACSAdapter defines the interface that all PACS adapters must implement
type PACSAdapter interface {
	// Query executes a C-FIND (or its protocol equivalent) for the given
	// identifier. On a non-success terminal status the results received
	// before the failure are returned alongside the error.
	Query(ctx context.Context, desc *query.Descriptor) ([]models.ResultRecord, error)

	// Retrieve asks the remote node to move the objects selected by the
	// identifier to destinationAET. Every status message observed is fed
	// to observe, the final one included.
	Retrieve(ctx context.Context, destinationAET string, desc *query.Descriptor, observe func(progress.Report)) error

	// Connection management
	TestConnection(ctx context.Context) (*models.ConnectionStatus, error)
	Close() error

	// Adapter info
	Type() models.PACSType
}

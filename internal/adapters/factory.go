package adapters

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/aotal/dicom-api-mcp-project/internal/models"
	"github.com/aotal/dicom-api-mcp-project/pkg/dimse"
)

// AdapterFactory manages PACS adapter instances
type AdapterFactory struct {
	callingAE string

	mu       sync.RWMutex
	adapters map[uuid.UUID]PACSAdapter // keyed by node ID
}

// NewAdapterFactory creates a new adapter factory
func NewAdapterFactory(callingAE string) *AdapterFactory {
	return &AdapterFactory{
		callingAE: callingAE,
		adapters:  make(map[uuid.UUID]PACSAdapter),
	}
}

// GetAdapter gets or creates an adapter for a PACS node
func (f *AdapterFactory) GetAdapter(node models.PACSNode) (PACSAdapter, error) {
	f.mu.RLock()
	adapter, exists := f.adapters[node.ID]
	f.mu.RUnlock()

	if exists {
		return adapter, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Double-check after acquiring write lock
	if adapter, exists := f.adapters[node.ID]; exists {
		return adapter, nil
	}

	var err error
	switch node.Type {
	case models.PACSTypeDIMSE:
		adapter, err = NewDIMSEAdapter(dimse.Node{
			Host:      node.Host,
			Port:      node.Port,
			CalledAE:  node.AETitle,
			CallingAE: f.callingAE,
		})
	case models.PACSTypeDICOMWeb:
		adapter, err = NewDICOMWebAdapter(node)
	default:
		return nil, fmt.Errorf("unsupported PACS type: %s", node.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create adapter: %w", err)
	}

	f.adapters[node.ID] = adapter
	return adapter, nil
}

// RemoveAdapter removes the adapter for a node
func (f *AdapterFactory) RemoveAdapter(nodeID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	adapter, exists := f.adapters[nodeID]
	if !exists {
		return nil
	}

	if err := adapter.Close(); err != nil {
		return fmt.Errorf("failed to close adapter: %w", err)
	}

	delete(f.adapters, nodeID)
	return nil
}

// CloseAll closes all adapters
func (f *AdapterFactory) CloseAll() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs int
	for nodeID, adapter := range f.adapters {
		if err := adapter.Close(); err != nil {
			errs++
		}
		delete(f.adapters, nodeID)
	}

	if errs > 0 {
		return fmt.Errorf("encountered %d errors while closing adapters", errs)
	}
	return nil
}

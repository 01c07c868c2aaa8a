package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/one-byte-data/obd-dicom/media"
	"github.com/one-byte-data/obd-dicom/network"
	"github.com/one-byte-data/obd-dicom/services"
	"github.com/rs/zerolog/log"

	"github.com/aotal/dicom-api-mcp-project/internal/models"
	"github.com/aotal/dicom-api-mcp-project/internal/progress"
	"github.com/aotal/dicom-api-mcp-project/internal/query"
	"github.com/aotal/dicom-api-mcp-project/pkg/dimse"
)

// scuClient is the slice of the SCU surface the adapter drives. The
// production implementation is services.NewSCU; tests substitute a fake.
type scuClient interface {
	EchoSCU(timeout int) error
	FindSCU(query media.DcmObj, timeout int) (int, uint16, error)
	MoveSCU(destAET string, query media.DcmObj, timeout int) (uint16, error)
	SetOnCFindResult(f func(result media.DcmObj))
	SetOnCMoveResult(f func(result media.DcmObj))
}

// DIMSEAdapter implements PACSAdapter over DIMSE associations. Each
// operation opens a fresh association and releases it on completion.
type DIMSEAdapter struct {
	node   dimse.Node
	newSCU func() scuClient
}

// NewDIMSEAdapter creates a new DIMSE adapter
func NewDIMSEAdapter(node dimse.Node) (*DIMSEAdapter, error) {
	if err := node.Validate(); err != nil {
		return nil, err
	}

	log.Info().
		Str("host", node.Host).
		Int("port", node.Port).
		Str("called_ae", node.CalledAE).
		Str("calling_ae", node.CallingAE).
		Msg("Created DIMSE adapter")

	return &DIMSEAdapter{
		node: node,
		newSCU: func() scuClient {
			return services.NewSCU(&network.Destination{
				HostName:  node.Host,
				Port:      node.Port,
				CalledAE:  node.CalledAE,
				CallingAE: node.CallingAE,
				IsCFind:   true,
				IsCMove:   true,
			})
		},
	}, nil
}

func (d *DIMSEAdapter) Type() models.PACSType {
	return models.PACSTypeDIMSE
}

// TestConnection tests the PACS connection using C-ECHO
func (d *DIMSEAdapter) TestConnection(ctx context.Context) (*models.ConnectionStatus, error) {
	start := time.Now()
	status := &models.ConnectionStatus{
		LastChecked: start,
		IsConnected: false,
	}

	log.Debug().
		Str("host", d.node.Host).
		Int("port", d.node.Port).
		Str("called_ae", d.node.CalledAE).
		Msg("Testing DIMSE connection with C-ECHO")

	scu := d.newSCU()
	err := d.await(ctx, func() error {
		return scu.EchoSCU(dimse.TimeoutCEcho)
	})

	status.ResponseTime = time.Since(start).Milliseconds()

	if err != nil {
		status.ErrorMessage = fmt.Sprintf("C-ECHO failed: %v", err)
		log.Warn().
			Err(err).
			Str("host", d.node.Host).
			Int64("response_time_ms", status.ResponseTime).
			Msg("DIMSE C-ECHO failed")
		return status, &dimse.AssociationError{Node: d.node, Err: err}
	}

	status.IsConnected = true

	log.Info().
		Str("host", d.node.Host).
		Int64("response_time_ms", status.ResponseTime).
		Msg("DIMSE C-ECHO successful")

	return status, nil
}

// Query executes a C-FIND for the given identifier. Pending responses
// are converted to result records as they stream in; on a non-success
// terminal status the records received so far are returned with the
// error.
func (d *DIMSEAdapter) Query(ctx context.Context, desc *query.Descriptor) ([]models.ResultRecord, error) {
	log.Debug().
		Str("level", string(desc.Level)).
		Str("host", d.node.Host).
		Msg("Executing C-FIND")

	scu := d.newSCU()
	identifier := buildIdentifier(desc)

	var records []models.ResultRecord
	scu.SetOnCFindResult(func(result media.DcmObj) {
		records = append(records, recordFromDcmObj(result))
	})

	var (
		numResults int
		status     uint16
	)
	start := time.Now()
	err := d.await(ctx, func() error {
		var callErr error
		numResults, status, callErr = scu.FindSCU(identifier, dimse.TimeoutCFind)
		return callErr
	})
	duration := time.Since(start)

	if err != nil {
		log.Error().
			Err(err).
			Str("level", string(desc.Level)).
			Str("host", d.node.Host).
			Dur("duration", duration).
			Msg("C-FIND failed")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &dimse.AssociationError{Node: d.node, Err: err}
	}

	if status != dimse.StatusSuccess {
		log.Warn().
			Uint16("status", status).
			Str("host", d.node.Host).
			Int("partial_results", len(records)).
			Msg("C-FIND completed with non-success status")
		return records, &dimse.OperationError{Operation: "c-find", Status: status}
	}

	log.Info().
		Int("num_results", numResults).
		Int("num_records", len(records)).
		Str("level", string(desc.Level)).
		Dur("duration", duration).
		Str("host", d.node.Host).
		Msg("C-FIND completed successfully")

	return records, nil
}

// Retrieve executes a C-MOVE to the destination AE. Every pending
// response and the terminal status are fed to observe; the caller's
// aggregator decides the overall outcome.
func (d *DIMSEAdapter) Retrieve(ctx context.Context, destinationAET string, desc *query.Descriptor, observe func(progress.Report)) error {
	if destinationAET == "" {
		return fmt.Errorf("destination AE title is required for C-MOVE")
	}

	log.Debug().
		Str("level", string(desc.Level)).
		Str("destination_aet", destinationAET).
		Str("host", d.node.Host).
		Msg("Executing C-MOVE")

	scu := d.newSCU()
	identifier := buildIdentifier(desc)

	scu.SetOnCMoveResult(func(result media.DcmObj) {
		observe(moveReportFromDcmObj(result))
	})

	var status uint16
	start := time.Now()
	err := d.await(ctx, func() error {
		var callErr error
		status, callErr = scu.MoveSCU(destinationAET, identifier, dimse.TimeoutCMove)
		return callErr
	})
	duration := time.Since(start)

	if err != nil {
		log.Error().
			Err(err).
			Str("destination_aet", destinationAET).
			Str("host", d.node.Host).
			Dur("duration", duration).
			Msg("C-MOVE failed")
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &dimse.AssociationError{Node: d.node, Err: err}
	}

	observe(progress.Report{Status: status})

	log.Info().
		Uint16("status", status).
		Str("destination_aet", destinationAET).
		Dur("duration", duration).
		Str("host", d.node.Host).
		Msg("C-MOVE completed")

	return nil
}

// Close closes the adapter (no persistent connections with this implementation)
func (d *DIMSEAdapter) Close() error {
	log.Debug().
		Str("host", d.node.Host).
		Msg("Closing DIMSE adapter (no persistent connections)")
	return nil
}

// await runs a blocking SCU call in its own goroutine so the context can
// cut the wait short. An abandoned call runs to its own timeout; the
// association is not reused afterwards.
func (d *DIMSEAdapter) await(ctx context.Context, call func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- call()
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

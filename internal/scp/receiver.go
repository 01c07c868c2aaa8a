// Package scp runs the local C-STORE receiver that accepts objects moved
// to the gateway's AE title and files them by SOP instance UID.
package scp

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/one-byte-data/obd-dicom/dictionary/tags"
	"github.com/one-byte-data/obd-dicom/media"
	"github.com/one-byte-data/obd-dicom/network"
	"github.com/one-byte-data/obd-dicom/services"
	"github.com/rs/zerolog/log"

	"github.com/aotal/dicom-api-mcp-project/internal/metrics"
	"github.com/aotal/dicom-api-mcp-project/pkg/dimse"
)

// stopGracePeriod bounds how long Stop waits for the serve loop after
// the listener is closed. The loop retries accept errors indefinitely,
// closed listener included, so it may never return on its own.
const stopGracePeriod = 250 * time.Millisecond

// storedObject is the slice of media.DcmObj the store handler needs.
type storedObject interface {
	GetString(tag *tags.Tag) string
	WriteToFile(fileName string) error
}

// server is the slice of the obd SCP surface the receiver drives.
type server interface {
	Start() error
	Stop() error
	OnAssociationRequest(f func(request network.AAssociationRQ) bool)
	OnCStoreRequest(f func(request network.AAssociationRQ, data media.DcmObj) uint16)
}

// Receiver listens for incoming associations and stores every received
// object under storageDir as <SOPInstanceUID>.dcm. Re-received instances
// overwrite their file, keeping the store idempotent.
type Receiver struct {
	aet        string
	port       int
	storageDir string
	srv        server
	done       chan error
	stopGrace  time.Duration
}

// New creates a receiver for the given AE title, port and storage
// directory. The directory must exist.
func New(aet string, port int, storageDir string) *Receiver {
	r := &Receiver{
		aet:        aet,
		port:       port,
		storageDir: storageDir,
		srv:        services.NewSCP(port),
		done:       make(chan error, 1),
		stopGrace:  stopGracePeriod,
	}
	r.srv.OnAssociationRequest(r.handleAssociation)
	r.srv.OnCStoreRequest(func(request network.AAssociationRQ, data media.DcmObj) uint16 {
		return r.handleStore(request.GetCallingAE(), data)
	})
	return r
}

// Start begins serving in a background goroutine.
func (r *Receiver) Start() {
	log.Info().
		Str("aet", r.aet).
		Int("port", r.port).
		Str("storage_dir", r.storageDir).
		Msg("Starting C-STORE receiver")

	go func() {
		r.done <- r.srv.Start()
	}()
}

// Stop closes the listener. The serve loop keeps retrying accept errors
// after the close, so Stop does not block on it returning; a short grace
// period collects an early exit.
func (r *Receiver) Stop() error {
	log.Info().Int("port", r.port).Msg("Stopping C-STORE receiver")
	if err := r.srv.Stop(); err != nil {
		return err
	}
	select {
	case err := <-r.done:
		if err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
	case <-time.After(r.stopGrace):
	}
	return nil
}

func (r *Receiver) handleAssociation(request network.AAssociationRQ) bool {
	log.Debug().
		Str("calling_ae", request.GetCallingAE()).
		Msg("Accepting incoming association")
	return true
}

// handleStore files one received object. Objects without a SOP instance
// UID cannot be addressed and are refused. A panic while reading or
// writing the object fails that store only; the listener keeps running.
func (r *Receiver) handleStore(callingAE string, obj storedObject) (status uint16) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("panic", rec).
				Str("calling_ae", callingAE).
				Msg("Store handler panicked")
			status = dimse.StatusCannotUnderstand
		}
	}()

	sopInstanceUID := strings.TrimSpace(obj.GetString(tags.SOPInstanceUID))
	if sopInstanceUID == "" {
		log.Warn().
			Str("calling_ae", callingAE).
			Msg("Rejecting C-STORE without SOPInstanceUID")
		return dimse.StatusProcessingFailure
	}
	if !validUID(sopInstanceUID) {
		log.Warn().
			Str("calling_ae", callingAE).
			Str("sop_instance_uid", sopInstanceUID).
			Msg("Rejecting C-STORE with malformed SOPInstanceUID")
		return dimse.StatusProcessingFailure
	}

	path := filepath.Join(r.storageDir, sopInstanceUID+".dcm")
	if err := obj.WriteToFile(path); err != nil {
		log.Error().
			Err(err).
			Str("path", path).
			Str("calling_ae", callingAE).
			Msg("Failed to write received object")
		return dimse.StatusCannotUnderstand
	}

	metrics.StoredInstances.Inc()
	log.Info().
		Str("sop_instance_uid", sopInstanceUID).
		Str("calling_ae", callingAE).
		Str("path", path).
		Msg("Stored received object")
	return dimse.StatusSuccess
}

// InstancePath returns the storage path for a SOP instance UID, or an
// error when no such file exists.
func (r *Receiver) InstancePath(sopInstanceUID string) (string, error) {
	return InstancePath(r.storageDir, sopInstanceUID)
}

// InstancePath resolves a SOP instance UID against a storage directory.
func InstancePath(storageDir, sopInstanceUID string) (string, error) {
	if !validUID(sopInstanceUID) {
		return "", fmt.Errorf("malformed SOP instance UID %q", sopInstanceUID)
	}
	path := filepath.Join(storageDir, sopInstanceUID+".dcm")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("instance %s not found in local storage: %w", sopInstanceUID, os.ErrNotExist)
		}
		return "", err
	}
	return path, nil
}

// validUID accepts the DICOM UID alphabet only, which also rules out
// path traversal in the derived file name.
func validUID(uid string) bool {
	if uid == "" || len(uid) > 64 {
		return false
	}
	for _, c := range uid {
		if (c < '0' || c > '9') && c != '.' {
			return false
		}
	}
	return true
}

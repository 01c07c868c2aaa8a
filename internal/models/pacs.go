package models

import (
	"time"

	"github.com/google/uuid"
)

// PACSType represents the type of PACS system
type PACSType string

const (
	PACSTypeDIMSE    PACSType = "dimse"
	PACSTypeDICOMWeb PACSType = "dicomweb"
)

// PACSNode describes a remote PACS the gateway can talk to.
type PACSNode struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Type    PACSType  `json:"type"`
	Host    string    `json:"host"`
	Port    int       `json:"port"`
	AETitle string    `json:"ae_title"`
}

// ConnectionStatus represents the status of a PACS connection
type ConnectionStatus struct {
	IsConnected  bool      `json:"is_connected"`
	LastChecked  time.Time `json:"last_checked"`
	ResponseTime int64     `json:"response_time_ms"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// ConnectionTestRequest represents a request to test PACS connection
type ConnectionTestRequest struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	AETitle string `json:"ae_title"`
}

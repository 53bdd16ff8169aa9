package domain

import (
	"time"
)

// AddressRecord is a persisted, exported address.
type AddressRecord struct {
	ID         int64      `json:"id"`
	Address    string     `json:"address"`
	Lat        float64    `json:"lat"`
	Lng        float64    `json:"lng"`
	ExportedAt time.Time  `json:"exported_at"`
	FlierSent  bool       `json:"flier_sent"`
	LastMarked *time.Time `json:"last_marked,omitempty"`
}

// AddressQuery filters stored addresses.
type AddressQuery struct {
	Text   string       // substring match, case-insensitive
	Bounds *BoundingBox // optional lat/lng rectangle
	Offset int
	Limit  int
}

// EnumerationRun records one completed region enumeration.
type EnumerationRun struct {
	ID           string    `json:"id"`
	Polygon      Polygon   `json:"polygon"`
	Step         StepSize  `json:"step"`
	Samples      int       `json:"samples"`
	Inside       int       `json:"inside"`
	Addresses    int       `json:"addresses"`
	ReverseCalls uint64    `json:"reverse_calls"`
	ForwardCalls uint64    `json:"forward_calls"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// EnumerationResult is returned to callers of EnumerateRegion.
type EnumerationResult struct {
	RunID        string   `json:"runId"`
	Addresses    []string `json:"addresses"`
	ReverseCalls uint64   `json:"reverseCalls"`
	ForwardCalls uint64   `json:"forwardCalls"`
	Samples      int      `json:"samples"`
	Inside       int      `json:"inside"`
	Step         StepSize `json:"step"`
	// Stored is true when every address found is in the address store.
	Stored     bool   `json:"stored"`
	StoreError string `json:"storeError,omitempty"`
}

// RegionPreview estimates the cost of enumerating a region.
type RegionPreview struct {
	Step        StepSize    `json:"step"`
	StepName    string      `json:"stepName"`
	StepMeters  float64     `json:"stepMeters"`
	Bounds      BoundingBox `json:"bounds"`
	Samples     int         `json:"samples"`
	Inside      int         `json:"inside"`
	MaxReverses int         `json:"maxReverseCalls"`
}

// EnumerationProgress is published while an enumeration runs.
type EnumerationProgress struct {
	RunID     string `json:"run_id"`
	Processed int    `json:"processed"`
	Inside    int    `json:"inside"`
	Addresses int    `json:"addresses"`
	Done      bool   `json:"done"`
	Error     string `json:"error,omitempty"`
}

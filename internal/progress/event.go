package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported progress stages.
const (
	StageAggregateStart Stage = "AGGREGATE_START"
	StageAggregateDone  Stage = "AGGREGATE_DONE"
	StageAdapterStart   Stage = "ADAPTER_START"
	StageAdapterDone    Stage = "ADAPTER_DONE"
)

// Event captures a single adapter or aggregation milestone.
type Event struct {
	// QueryID ties every adapter event to the aggregation that spawned it.
	QueryID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// Retailer scopes adapter events.
	Retailer string
	URL      string
	// Outcome is the adapter classification (ok, fetch_error, parse_error, ...).
	Outcome string
	// Price is the decimal string of the quoted price, empty when none.
	Price string
	Dur   time.Duration
	// Valid counts priced quotes on AGGREGATE_DONE.
	Valid int
	Note  string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageAggregateStart, StageAggregateDone:
		if e.QueryID == [16]byte{} {
			return errors.New("aggregate events require a query id")
		}
	case StageAdapterStart:
		if e.Retailer == "" {
			return errors.New("adapter start requires retailer")
		}
	case StageAdapterDone:
		if e.Retailer == "" {
			return errors.New("adapter done requires retailer")
		}
		if e.Outcome == "" {
			return errors.New("adapter done requires outcome")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// QueryUUID converts the binary query ID to uuid.UUID.
func (e Event) QueryUUID() uuid.UUID {
	return uuid.UUID(e.QueryID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ParseQueryID decodes a textual UUID, returning the zero ID when malformed.
func ParseQueryID(raw string) [16]byte {
	id, err := uuid.Parse(raw)
	if err != nil {
		return [16]byte{}
	}
	return UUIDToBytes(id)
}

package domain

import (
	"fmt"
	"time"
)

// StartDateType selects whether the caller's date anchors departure or
// arrival, and which upstream "sort by" parameter each adapter must send.
type StartDateType int

const (
	StartDateUnspecified StartDateType = iota
	StartDateDeparture
	StartDateArrival
)

func (t StartDateType) String() string {
	switch t {
	case StartDateDeparture:
		return "Departure"
	case StartDateArrival:
		return "Arrival"
	default:
		return "Unspecified"
	}
}

// SearchRange is the four accepted date-window widths.
type SearchRange int

const (
	SearchRange7d SearchRange = iota + 1
	SearchRange14d
	SearchRange21d
	SearchRange28d
)

// Days returns the window width in calendar days. ok is false for any
// value outside the four accepted enum members (spec boundary case:
// "search_range ∈ {7,14,21,28} days are the only accepted values").
func (r SearchRange) Days() (days int, ok bool) {
	switch r {
	case SearchRange7d:
		return 7, true
	case SearchRange14d:
		return 14, true
	case SearchRange21d:
		return 21, true
	case SearchRange28d:
		return 28, true
	default:
		return 0, false
	}
}

// DirectOnly is a tri-state flag: unset accepts either direct or
// transshipment routes.
type DirectOnly int

const (
	DirectOnlyUnset DirectOnly = iota
	DirectOnlyTrue
	DirectOnlyFalse
)

// Filters narrows the carrier result set. All fields are optional; the
// zero value of each means "no constraint".
type Filters struct {
	Carrier             CarrierCode
	VesselIMO           string
	ServiceCode         string
	TransshipmentPort   string
	DirectOnly          DirectOnly
}

// SearchRequest is the caller's query, replacing the keyword-bag config
// object of the original implementation with an explicit struct per
// spec.md §9.
type SearchRequest struct {
	Origin        string
	Destination   string
	DepartureDate time.Time
	ArrivalDate   time.Time
	StartDateType StartDateType
	SearchRange   SearchRange
	Filters       Filters
}

// DateWindow returns (fromDate, toDate) per spec.md §4.E's date-window
// construction: fromDate is whichever of departure/arrival was supplied,
// toDate extends it by the search range's duration.
func (r SearchRequest) DateWindow() (from, to time.Time, err error) {
	days, ok := r.SearchRange.Days()
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid search range %d", r.SearchRange)
	}

	switch r.StartDateType {
	case StartDateDeparture:
		from = r.DepartureDate
	case StartDateArrival:
		from = r.ArrivalDate
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("start date type must be Departure or Arrival")
	}

	if from.IsZero() {
		return time.Time{}, time.Time{}, fmt.Errorf("missing start date for type %s", r.StartDateType)
	}

	return from, from.AddDate(0, 0, days), nil
}

// Validate checks the request-level preconditions that, per spec.md §7,
// surface as HTTP 422 rather than being tolerated like adapter/schedule
// failures.
func (r SearchRequest) Validate() error {
	if len(r.Origin) != 5 {
		return fmt.Errorf("origin must be a 5-character UN/LOCODE, got %q", r.Origin)
	}
	if len(r.Destination) != 5 {
		return fmt.Errorf("destination must be a 5-character UN/LOCODE, got %q", r.Destination)
	}
	if r.StartDateType != StartDateDeparture && r.StartDateType != StartDateArrival {
		return fmt.Errorf("exactly one of departure date or arrival date is required")
	}
	if (r.StartDateType == StartDateDeparture && r.DepartureDate.IsZero()) ||
		(r.StartDateType == StartDateArrival && r.ArrivalDate.IsZero()) {
		return fmt.Errorf("missing start date for type %s", r.StartDateType)
	}
	if _, ok := r.SearchRange.Days(); !ok {
		return fmt.Errorf("search range must be one of {7,14,21,28} days")
	}
	if r.Filters.Carrier != "" {
		if _, ok := knownCarriers[r.Filters.Carrier]; !ok {
			return fmt.Errorf("unknown carrier filter %q", r.Filters.Carrier)
		}
	}
	return nil
}

package domain

import (
	"fmt"

	"schedulep2p/pkg/apperror"
)

// Validate checks Schedule s against invariants I1–I7 (spec.md §3). Every
// failure is recorded as a warning, never a hard error: per spec.md
// §4.F/§7, a validation failure drops the offending schedule and logs a
// warning, it never fails the request.
func (s Schedule) Validate() *apperror.ValidationErrors {
	v := &apperror.ValidationErrors{}

	if len(s.Legs) == 0 {
		v.AddWarning(apperror.CodeScheduleMissingLeg, "schedule has no legs")
		return v // nothing further can be checked meaningfully
	}

	first, last := s.Legs[0], s.Legs[len(s.Legs)-1]

	// I1
	if first.PointFrom.LocationCode != s.PointFrom {
		v.AddWarning(apperror.CodeScheduleMissingPort, fmt.Sprintf(
			"first leg origin %q does not match schedule pointFrom %q", first.PointFrom.LocationCode, s.PointFrom))
	}
	if last.PointTo.LocationCode != s.PointTo {
		v.AddWarning(apperror.CodeScheduleMissingPort, fmt.Sprintf(
			"last leg destination %q does not match schedule pointTo %q", last.PointTo.LocationCode, s.PointTo))
	}

	// I2
	wantTransshipment := len(s.Legs) > 1
	if s.Transshipment != wantTransshipment {
		v.AddWarning(apperror.CodeScheduleBadSequence, fmt.Sprintf(
			"transshipment=%v but leg count is %d", s.Transshipment, len(s.Legs)))
	}

	// I3
	if !s.ETD.Equal(first.ETD) {
		v.AddWarning(apperror.CodeScheduleInvalidDates, "schedule etd does not match first leg etd")
	}
	if !s.ETA.Equal(last.ETA) {
		v.AddWarning(apperror.CodeScheduleInvalidDates, "schedule eta does not match last leg eta")
	}

	// I4
	for i, leg := range s.Legs {
		if leg.ETA.Before(leg.ETD) {
			v.AddWarning(apperror.CodeScheduleInvalidDates, fmt.Sprintf("leg %d eta precedes etd", i))
		}
	}

	// I5
	if s.TransitTime < 0 {
		v.AddWarning(apperror.CodeScheduleInvalidDates, "transitTime is negative")
	}

	// I6
	for i, leg := range s.Legs {
		if leg.Transportations.ReferenceType == "IMO" && leg.Transportations.Reference == "" {
			v.AddWarning(apperror.CodeScheduleMissingLeg, fmt.Sprintf(
				"leg %d has referenceType IMO but no reference", i))
		}
	}

	// I7
	for i, leg := range s.Legs {
		if leg.Cutoffs != nil && !leg.Cutoffs.HasAnyField() {
			v.AddWarning(apperror.CodeScheduleBadSequence, fmt.Sprintf(
				"leg %d has an empty cutoffs object, must be nil when no field is set", i))
		}
	}

	return v
}

// Package hmm adapts HMM's schedule API into the unified schema. Auth is
// a static API key sent as the x-Gateway-APIKey header.
package hmm

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/url"
	"time"

	"schedulep2p/internal/carriers"
	"schedulep2p/internal/domain"
	"schedulep2p/pkg/httpclient"
)

const scac = domain.CarrierHDMU

type legDoc struct {
	PointFromCode   string `json:"pointFromCode"`
	PointFromName   string `json:"pointFromName"`
	PointToCode     string `json:"pointToCode"`
	PointToName     string `json:"pointToName"`
	ETD             string `json:"etd"`
	ETA             string `json:"eta"`
	VesselName      string `json:"vesselName"`
	TransportType   string `json:"transportType"`
	VesselIMO       string `json:"vesselImo"`
	ServiceCode     string `json:"serviceCode"`
	InternalVoyage  string `json:"internalVoyageNumber"`
	ExternalVoyage  string `json:"externalVoyageNumber"`
	OutboundInland  string `json:"outboundInland"`
	InboundInland   string `json:"inboundInland"`
}

type routeDoc struct {
	Legs []legDoc `json:"legs"`
}

type responseDoc struct {
	RoutingDetails []routeDoc `json:"routingDetails"`
}

func mapTransportType(raw string) domain.TransportType {
	switch raw {
	case "Truck", "Inland":
		return domain.TransportTruck
	case "Feeder":
		return domain.TransportFeeder
	case "Barge":
		return domain.TransportBarge
	case "Rail":
		return domain.TransportRail
	default:
		return domain.TransportVessel
	}
}

// webPriority encodes direct/transshipment preference per spec.md §6/§9:
// D=direct, T=transshipment, A=either. Per the decided open question (see
// design notes), this is sent as a preference hint to the upstream API,
// not relied upon as a hard filter — internal/carriers.Matches still
// applies the authoritative direct_only check after normalization.
func webPriority(d domain.DirectOnly) string {
	switch d {
	case domain.DirectOnlyTrue:
		return "D"
	case domain.DirectOnlyFalse:
		return "T"
	default:
		return "A"
	}
}

func webSort(t domain.StartDateType) string {
	if t == domain.StartDateArrival {
		return "Arrival"
	}
	return "Departure"
}

// Fetch queries HMM's schedule API and yields unified Schedules.
func Fetch(ctx context.Context, deps carriers.Deps, req domain.SearchRequest) iter.Seq2[domain.Schedule, error] {
	return func(yield func(domain.Schedule, error) bool) {
		ep, ok := deps.Settings.Endpoint(scac)
		if !ok {
			return
		}

		from, to, werr := req.DateWindow()
		if werr != nil {
			return
		}

		params := url.Values{}
		params.Set("polCode", req.Origin)
		params.Set("podCode", req.Destination)
		params.Set("fromDate", from.Format("2006-01-02"))
		params.Set("toDate", to.Format("2006-01-02"))
		params.Set("webSort", webSort(req.StartDateType))
		params.Set("webPriority", webPriority(req.Filters.DirectOnly))

		headers := map[string]string{"x-Gateway-APIKey": ep.Token.Reveal()}

		for res, err := range deps.HTTP.Parse(ctx, httpclient.Request{
			URL: ep.URL, Params: params, Headers: headers,
		}, nil) {
			if err != nil {
				deps.Log.Warn("hmm: request failed", "error", err)
				yield(domain.Schedule{}, fmt.Errorf("hmm: request: %w", err))
				return
			}
			if res.Doc == nil {
				continue
			}

			var doc responseDoc
			if jerr := json.Unmarshal(res.Doc, &doc); jerr != nil {
				deps.Log.Warn("hmm: malformed response", "error", jerr)
				continue
			}

			for _, r := range doc.RoutingDetails {
				sched, ok := buildSchedule(r)
				if !ok {
					continue
				}
				if !carriers.Matches(sched, req.Filters) {
					continue
				}
				if !yield(sched, nil) {
					return
				}
			}
		}
	}
}

func buildSchedule(r routeDoc) (domain.Schedule, bool) {
	if len(r.Legs) == 0 {
		return domain.Schedule{}, false
	}

	legs := make([]domain.Leg, 0, len(r.Legs)+2)
	for _, l := range r.Legs {
		etd, err1 := time.Parse("2006-01-02T15:04:05", l.ETD)
		eta, err2 := time.Parse("2006-01-02T15:04:05", l.ETA)
		if err1 != nil || err2 != nil {
			return domain.Schedule{}, false
		}

		if l.OutboundInland != "" {
			legs = append(legs, inlandLeg(l.OutboundInland, l.PointFromCode, etd))
		}

		transport := mapTransportType(l.TransportType)
		leg := domain.Leg{
			PointFrom:   domain.PointBase{LocationCode: l.PointFromCode, LocationName: l.PointFromName},
			PointTo:     domain.PointBase{LocationCode: l.PointToCode, LocationName: l.PointToName},
			ETD:         etd,
			ETA:         eta,
			TransitTime: daysBetween(etd, eta),
			Transportations: domain.Transportation{
				TransportType: transport,
				TransportName: l.VesselName,
				ReferenceType: "IMO",
				Reference:     l.VesselIMO,
			},
		}
		if l.ServiceCode != "" {
			leg.Services = &domain.Service{ServiceCode: l.ServiceCode}
		}
		if l.InternalVoyage != "" || l.ExternalVoyage != "" {
			leg.Voyages = &domain.Voyage{InternalVoyage: l.InternalVoyage, ExternalVoyage: l.ExternalVoyage}
		}
		legs = append(legs, leg)

		if l.InboundInland != "" {
			legs = append(legs, inlandLeg(l.PointToCode, l.InboundInland, eta))
		}
	}

	first, last := legs[0], legs[len(legs)-1]
	return domain.Schedule{
		SCAC:          string(scac),
		PointFrom:     first.PointFrom.LocationCode,
		PointTo:       last.PointTo.LocationCode,
		ETD:           first.ETD,
		ETA:           last.ETA,
		TransitTime:   daysBetween(first.ETD, last.ETA),
		Transshipment: len(legs) > 1,
		Legs:          legs,
	}, true
}

// inlandLeg synthesizes a trucking leg for HMM's inland-haulage fields,
// per spec.md's supplemented feature: "inbound/outbound inland leg
// synthesis from outboundInland/inboundInland".
func inlandLeg(from, to string, at time.Time) domain.Leg {
	return domain.Leg{
		PointFrom:   domain.PointBase{LocationCode: from},
		PointTo:     domain.PointBase{LocationCode: to},
		ETD:         at,
		ETA:         at,
		TransitTime: 0,
		Transportations: domain.Transportation{
			TransportType: domain.TransportTruck,
		},
	}
}

func daysBetween(from, to time.Time) int {
	d := to.Truncate(24 * time.Hour).Sub(from.Truncate(24 * time.Hour))
	return int(d.Hours() / 24)
}

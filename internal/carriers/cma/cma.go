// Package cma adapts the CMA-CGM group's API (CMDU, ANNU, CHNL, APLU)
// into the unified schema. Auth is a static API key; successful responses
// use the group's HTTP 206 paging protocol instead of a single JSON body.
package cma

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"schedulep2p/internal/carriers"
	"schedulep2p/internal/domain"
	"schedulep2p/pkg/httpclient"
)

const pageSize = 50

type routeDoc struct {
	PointFromCode string `json:"pointFromCode"`
	PointFromName string `json:"pointFromName"`
	PointToCode   string `json:"pointToCode"`
	PointToName   string `json:"pointToName"`
	Legs          []struct {
		PointFromCode  string `json:"pointFromCode"`
		PointFromName  string `json:"pointFromName"`
		PointToCode    string `json:"pointToCode"`
		PointToName    string `json:"pointToName"`
		ETD            string `json:"etd"`
		ETA            string `json:"eta"`
		VesselName     string `json:"vesselName"`
		TransportType  string `json:"transportType"`
		IMO            string `json:"imo"`
		ServiceCode    string `json:"serviceCode"`
		InternalVoyage string `json:"internalVoyageNumber"`
		ExternalVoyage string `json:"externalVoyageNumber"`
	} `json:"legs"`
}

// fallbackTimestamp substitutes "now, local timezone, microseconds
// stripped" for a leg missing a departure/arrival timestamp, carried from
// the original implementation's DEFAULT_ETD_ETA so partial upstream data
// still satisfies I3/I4 instead of being silently dropped.
func fallbackTimestamp(clock func() time.Time) time.Time {
	now := clock()
	return now.Truncate(time.Second)
}

func defaultClock() time.Time { return time.Now() }

func mapTransportType(raw string) domain.TransportType {
	switch strings.ToLower(raw) {
	case "truck", "land":
		return domain.TransportTruck
	case "feeder":
		return domain.TransportFeeder
	case "barge":
		return domain.TransportBarge
	case "rail":
		return domain.TransportRail
	default:
		return domain.TransportVessel
	}
}

// specificRoutings is set on every CMA request, per the original's
// updated_params lambda: USGovernment for APLU's own internal code
// ('0015') on a US-to-US lane, Commercial otherwise.
func specificRoutings(internalCode, origin, destination string) string {
	if internalCode == "0015" && strings.HasPrefix(origin, "US") && strings.HasPrefix(destination, "US") {
		return "USGovernment"
	}
	return "Commercial"
}

// maxTs caps the number of transshipments CMA itself will search for:
// 0 when the caller wants direct sailings only, 3 otherwise — mirrors the
// original's 'maxTs': 3 if direct_only in (False, None) else 0.
func maxTs(d domain.DirectOnly) string {
	if d == domain.DirectOnlyTrue {
		return "0"
	}
	return "3"
}

// contentRange parses a "items N-M/TOTAL" header value.
func contentRange(header string) (n, m, total int, ok bool) {
	var rangePart string
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return 0, 0, 0, false
	}
	rangePart = parts[1]

	nm := strings.SplitN(rangePart, "/", 2)
	if len(nm) != 2 {
		return 0, 0, 0, false
	}
	total, err := strconv.Atoi(nm[1])
	if err != nil {
		return 0, 0, 0, false
	}
	bounds := strings.SplitN(nm[0], "-", 2)
	if len(bounds) != 2 {
		return 0, 0, 0, false
	}
	n, err1 := strconv.Atoi(bounds[0])
	m, err2 := strconv.Atoi(bounds[1])
	if err1 != nil || err2 != nil {
		return 0, 0, 0, false
	}
	return n, m, total, true
}

// Fetch queries the CMA-group endpoint identified by scac's internal
// numeric code, handling the 206 paging sub-protocol transparently.
func Fetch(ctx context.Context, deps carriers.Deps, req domain.SearchRequest, scac domain.CarrierCode) iter.Seq2[domain.Schedule, error] {
	return func(yield func(domain.Schedule, error) bool) {
		ep, ok := deps.Settings.Endpoint(scac)
		if !ok {
			return
		}
		code, ok := domain.CMACodeForSCAC(scac)
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
		params.Set("shippingCompany", code)
		params.Set("specificRoutings", specificRoutings(code, req.Origin, req.Destination))
		params.Set("maxTs", maxTs(req.Filters.DirectOnly))

		headers := map[string]string{"Authorization": "Bearer " + ep.Token.Reveal()}

		var docs []routeDoc
		var fetchErr error

		for res, err := range deps.HTTP.Parse(ctx, httpclient.Request{
			URL: ep.URL, Params: params, Headers: headers,
		}, nil) {
			if err != nil {
				deps.Log.Warn("cma: request failed", "scac", scac, "error", err)
				yield(domain.Schedule{}, fmt.Errorf("cma(%s): request: %w", scac, err))
				return
			}

			if res.Raw != nil {
				pageDocs, total, perr := handlePaging(ctx, deps, ep.URL, headers, params, res)
				if perr != nil {
					fetchErr = perr
					break
				}
				docs = append(docs, pageDocs...)
				_ = total
				continue
			}

			if res.Doc != nil {
				var page []routeDoc
				if jerr := json.Unmarshal(res.Doc, &page); jerr == nil {
					docs = append(docs, page...)
				}
			}
		}
		if fetchErr != nil {
			deps.Log.Warn("cma: paging failed", "scac", scac, "error", fetchErr)
			yield(domain.Schedule{}, fmt.Errorf("cma(%s): paging: %w", scac, fetchErr))
			return
		}

		for _, d := range docs {
			sched, ok := buildSchedule(d, string(scac), defaultClock)
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

// handlePaging drives the CMA 206 paging sub-protocol: read Content-Range
// and X-Shipping-Company-Routings off the first response, then issue the
// remaining pages concurrently with bounded parallelism. errgroup is used
// purely as a concurrency limiter here (SetLimit), never to cancel
// siblings on first error — each page's failure is isolated.
func handlePaging(ctx context.Context, deps carriers.Deps, baseURL string, headers map[string]string, baseParams url.Values, first httpclient.Result) ([]routeDoc, int, error) {
	resp := first.Raw
	defer resp.Body.Close()

	var firstPage []routeDoc
	if err := json.NewDecoder(resp.Body).Decode(&firstPage); err != nil {
		return nil, 0, fmt.Errorf("cma: decoding first page: %w", err)
	}

	_, _, total, ok := contentRange(resp.Header.Get("Content-Range"))
	if !ok {
		return firstPage, 0, nil
	}

	routings := resp.Header.Get("X-Shipping-Company-Routings")
	params := cloneParams(baseParams)
	if strings.Contains(routings, ",") {
		// Multiple carriers in the response: clear the single-carrier
		// parameter and force the commercial routing (open question,
		// decided per the design notes: unconditional, even after a US-US
		// USGovernment request — the source gives no signal to suppress it).
		params.Del("shippingCompany")
		params.Set("specificRoutings", "Commercial")
	} else if routings != "" {
		params.Set("shippingCompany", routings)
	}

	var pageNumbers []int
	for n := pageSize; n < total; n += pageSize {
		pageNumbers = append(pageNumbers, n)
	}

	pages := make([][]routeDoc, len(pageNumbers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	var mu sync.Mutex
	for i, n := range pageNumbers {
		i, n := i, n
		g.Go(func() error {
			pageParams := cloneParams(params)
			hdrs := cloneHeaders(headers)
			hdrs["Range"] = fmt.Sprintf("items=%d-%d", n, min(n+pageSize-1, total-1))

			var page []routeDoc
			for res, err := range deps.HTTP.Parse(gctx, httpclient.Request{
				URL: baseURL, Params: pageParams, Headers: hdrs,
			}, nil) {
				if err != nil {
					deps.Log.Warn("cma: page request failed", "offset", n, "error", err)
					return nil // isolate this page's failure, never cancel siblings
				}
				if res.Doc != nil {
					json.Unmarshal(res.Doc, &page)
				}
			}
			mu.Lock()
			pages[i] = page
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // errors are already isolated per-page above; never propagated

	all := append([]routeDoc(nil), firstPage...)
	for _, p := range pages {
		all = append(all, p...)
	}
	return all, total, nil
}

func cloneParams(p url.Values) url.Values {
	out := url.Values{}
	for k, v := range p {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func cloneHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func buildSchedule(d routeDoc, scac string, clock func() time.Time) (domain.Schedule, bool) {
	if len(d.Legs) == 0 {
		return domain.Schedule{}, false
	}

	legs := make([]domain.Leg, 0, len(d.Legs))
	for _, l := range d.Legs {
		etd, ok1 := parseOrFallback(l.ETD, clock)
		eta, ok2 := parseOrFallback(l.ETA, clock)
		if !ok1 || !ok2 {
			return domain.Schedule{}, false
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
				Reference:     l.IMO,
			},
		}
		if l.ServiceCode != "" {
			leg.Services = &domain.Service{ServiceCode: l.ServiceCode}
		}
		if l.InternalVoyage != "" || l.ExternalVoyage != "" {
			leg.Voyages = &domain.Voyage{InternalVoyage: l.InternalVoyage, ExternalVoyage: l.ExternalVoyage}
		}
		legs = append(legs, leg)
	}

	first, last := legs[0], legs[len(legs)-1]
	return domain.Schedule{
		SCAC:          scac,
		PointFrom:     first.PointFrom.LocationCode,
		PointTo:       last.PointTo.LocationCode,
		ETD:           first.ETD,
		ETA:           last.ETA,
		TransitTime:   daysBetween(first.ETD, last.ETA),
		Transshipment: len(legs) > 1,
		Legs:          legs,
	}, true
}

func parseOrFallback(raw string, clock func() time.Time) (time.Time, bool) {
	if raw == "" {
		return fallbackTimestamp(clock), true
	}
	t, err := time.Parse("2006-01-02T15:04:05", raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func daysBetween(from, to time.Time) int {
	d := to.Truncate(24 * time.Hour).Sub(from.Truncate(24 * time.Hour))
	return int(d.Hours() / 24)
}

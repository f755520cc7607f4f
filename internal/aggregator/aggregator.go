// Package aggregator is the final stage (component F): it fans out one
// task per requested carrier adapter, flattens, sorts, validates, and
// serializes the result, consulting and populating the response cache.
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"schedulep2p/internal/bgtask"
	"schedulep2p/internal/domain"
	"schedulep2p/internal/settings"
	"schedulep2p/internal/taskmanager"
	"schedulep2p/pkg/apperror"
	"schedulep2p/pkg/cache"
	"schedulep2p/pkg/httpclient"
	"schedulep2p/pkg/metrics"
	"schedulep2p/pkg/telemetry"
)

// Adapter is the shape every internal/carriers/* package's Fetch function
// has, erased to a closure so the aggregator can fan out over an
// arbitrary registered set without importing every carrier package. The
// error return carries a genuine upstream transport failure (as opposed
// to a context deadline, which fanOut detects separately) so fanOut can
// hand it to taskmanager.Retryable instead of swallowing it at the
// adapter boundary.
type Adapter func(ctx context.Context, req domain.SearchRequest) ([]domain.Schedule, error)

// Aggregator wires the settings registry, HTTP facade, cache, and the
// registered carrier adapters into the pipeline of spec.md §4.F.
type Aggregator struct {
	Cache          cache.Cache
	HTTP           *httpclient.Client
	Settings       *settings.Registry
	BG             *bgtask.Runner
	Log            *slog.Logger
	Metrics        *metrics.Metrics
	TaskOptions    taskmanager.Options
	ScheduleExpiry time.Duration
	Adapters       map[domain.CarrierCode]Adapter
}

// Response is the envelope plus the headers spec.md §4.F step 9 calls
// for: X-Correlation-ID, KN-Count-Schedules, Cache-Control.
type Response struct {
	Envelope domain.Envelope
	Headers  map[string]string
}

// Aggregate runs the full pipeline for one search request.
func (a *Aggregator) Aggregate(ctx context.Context, req domain.SearchRequest) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, apperror.NewWithField(apperror.CodeInvalidRequest, err.Error(), "request")
	}

	ctx, span := telemetry.StartSpan(ctx, "aggregator.Aggregate")
	defer span.End()

	fingerprint := a.fingerprint(req)
	correlationID := fingerprint

	if env, ok := a.cacheLookup(ctx, fingerprint); ok {
		a.recordAggregation("hit", 0)
		return &Response{
			Envelope: env,
			Headers: map[string]string{
				"X-Correlation-ID":  correlationID,
				"KN-Count-Schedules": fmt.Sprintf("%d", env.NoofSchedule),
				"Cache-Control":      "public, max-age=7200",
			},
		}, nil
	}

	start := time.Now()
	schedules, anyTaskFailed := a.fanOut(ctx, req)

	sort.SliceStable(schedules, func(i, j int) bool {
		if !schedules[i].ETD.Equal(schedules[j].ETD) {
			return schedules[i].ETD.Before(schedules[j].ETD)
		}
		return schedules[i].TransitTime < schedules[j].TransitTime
	})

	valid := a.validate(schedules)

	env := domain.Envelope{
		ProductID:    fingerprint,
		Origin:       req.Origin,
		Destination:  req.Destination,
		NoofSchedule: len(valid),
		Schedules:    valid,
	}

	headers := map[string]string{
		"X-Correlation-ID":   correlationID,
		"KN-Count-Schedules": fmt.Sprintf("%d", len(valid)),
	}

	if len(valid) == 0 {
		env = domain.NotFoundEnvelope(fingerprint, req.Origin, req.Destination)
		headers["Cache-Control"] = "no-store"
		a.recordAggregation("miss", time.Since(start))
		return &Response{Envelope: env, Headers: headers}, nil
	}

	headers["Cache-Control"] = "public, max-age=7200"

	if !anyTaskFailed {
		a.backgroundCacheWrite(fingerprint, env)
	}

	a.recordAggregation("miss", time.Since(start))
	return &Response{Envelope: env, Headers: headers}, nil
}

func (a *Aggregator) fingerprint(req domain.SearchRequest) string {
	params := map[string]string{
		"origin":        req.Origin,
		"destination":   req.Destination,
		"startDateType": req.StartDateType.String(),
		"searchRange":   fmt.Sprintf("%d", req.SearchRange),
	}
	if !req.DepartureDate.IsZero() {
		params["departureDate"] = req.DepartureDate.Format("2006-01-02")
	}
	if !req.ArrivalDate.IsZero() {
		params["arrivalDate"] = req.ArrivalDate.Format("2006-01-02")
	}

	filters := map[string]string{
		"carrier":           string(req.Filters.Carrier),
		"vesselImo":         req.Filters.VesselIMO,
		"serviceCode":       req.Filters.ServiceCode,
		"transshipmentPort": req.Filters.TransshipmentPort,
		"directOnly":        directOnlyTag(req.Filters.DirectOnly),
	}

	return cache.Fingerprint("product", params, filters)
}

func directOnlyTag(d domain.DirectOnly) string {
	switch d {
	case domain.DirectOnlyTrue:
		return "true"
	case domain.DirectOnlyFalse:
		return "false"
	default:
		return ""
	}
}

// stale wraps a.Cache so that a Redis-down or corrupt-entry moment never
// fails a request outright — it degrades to a cache miss instead, per
// spec.md §4.B/§7.
func (a *Aggregator) stale() *cache.StaleTolerant {
	s := cache.NewStaleTolerant(a.Cache, a.Log)
	if a.Metrics != nil {
		s.WithMetrics(a.Metrics)
	}
	return s
}

func (a *Aggregator) cacheLookup(ctx context.Context, key string) (domain.Envelope, bool) {
	if a.Cache == nil {
		return domain.Envelope{}, false
	}
	raw, ok := a.stale().Get(ctx, key)
	if !ok {
		if a.Metrics != nil {
			a.Metrics.RecordCacheMiss("response")
		}
		return domain.Envelope{}, false
	}

	var env domain.Envelope
	if jerr := json.Unmarshal(raw, &env); jerr != nil {
		a.Log.Warn("cached envelope is corrupt, treating as a miss", "error", jerr)
		if a.Metrics != nil {
			a.Metrics.RecordCacheMiss("response")
		}
		return domain.Envelope{}, false
	}
	if a.Metrics != nil {
		a.Metrics.RecordCacheHit("response")
	}
	return env, true
}

func (a *Aggregator) backgroundCacheWrite(key string, env domain.Envelope) {
	if a.Cache == nil || a.BG == nil {
		return
	}
	payload, err := json.Marshal(env)
	if err != nil {
		a.Log.Warn("failed to marshal envelope for caching", "error", err)
		return
	}
	expiry := a.ScheduleExpiry
	if expiry == 0 {
		expiry = 2 * time.Hour
	}
	a.BG.Go(func() {
		a.stale().Set(context.Background(), key, payload, expiry)
	})
}

// fanOut schedules one taskmanager task per requested adapter and
// flattens their results. anyTaskFailed mirrors spec.md §4.F step 8's
// "no task manager error flag is set" condition.
func (a *Aggregator) fanOut(ctx context.Context, req domain.SearchRequest) (schedules []domain.Schedule, anyTaskFailed bool) {
	targets := a.targets(req.Filters.Carrier)

	group := taskmanager.NewGroup[[]domain.Schedule](ctx, a.TaskOptions)
	for _, scac := range targets {
		adapter, ok := a.Adapters[scac]
		if !ok {
			continue
		}
		group.Go(string(scac), func(taskCtx context.Context) ([]domain.Schedule, error) {
			var done func(status string)
			if a.Metrics != nil {
				done = a.Metrics.TimeCarrierRequest(string(scac))
			}
			result, err := adapter(taskCtx, req)
			if err != nil {
				if done != nil {
					done("error")
				}
				return result, taskmanager.Retryable(err)
			}
			if cerr := taskCtx.Err(); cerr != nil {
				if done != nil {
					done("timeout")
				}
				return result, taskmanager.Retryable(cerr)
			}
			if done != nil {
				done("ok")
			}
			return result, nil
		})
	}

	for _, r := range group.AllResults() {
		if r.Err {
			anyTaskFailed = true
			if a.Metrics != nil {
				a.Metrics.RecordCarrierTimeout(r.Name)
			}
			continue
		}
		if r.OK {
			schedules = append(schedules, r.Value...)
			if a.Metrics != nil {
				a.Metrics.RecordSchedulesReturned(r.Name, len(r.Value))
			}
		}
	}
	return schedules, anyTaskFailed
}

func (a *Aggregator) targets(filter domain.CarrierCode) []domain.CarrierCode {
	if filter != "" {
		if _, ok := a.Adapters[filter]; ok {
			return []domain.CarrierCode{filter}
		}
		return nil
	}
	out := make([]domain.CarrierCode, 0, len(a.Adapters))
	for scac := range a.Adapters {
		out = append(out, scac)
	}
	return out
}

// validate drops any schedule that fails I1–I7, logging each as a
// warning — spec.md §4.F step 5.
func (a *Aggregator) validate(schedules []domain.Schedule) []domain.Schedule {
	out := make([]domain.Schedule, 0, len(schedules))
	for _, s := range schedules {
		v := s.Validate()
		for _, w := range v.WarningMessages() {
			a.Log.Warn("schedule dropped by validation", "scac", s.SCAC, "reason", w)
			if a.Metrics != nil {
				a.Metrics.RecordValidationDrop(s.SCAC, "VALIDATION")
			}
		}
		if !v.HasWarnings() {
			out = append(out, s)
		}
	}
	return out
}

func (a *Aggregator) recordAggregation(cacheResult string, d time.Duration) {
	if a.Metrics != nil {
		a.Metrics.RecordAggregation(cacheResult, d)
	}
}

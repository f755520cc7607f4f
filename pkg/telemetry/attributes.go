package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Standard attribute keys used by carrier and aggregation spans.
const (
	AttrCarrier        = "carrier.scac"
	AttrCarrierURL      = "carrier.url"
	AttrTaskAttempt    = "task.attempt"
	AttrTaskTimeout    = "task.timeout_ms"

	AttrOriginLocode      = "request.origin_locode"
	AttrDestinationLocode = "request.destination_locode"
	AttrDateFrom          = "request.date_from"
	AttrDateTo            = "request.date_to"

	AttrSchedulesFound   = "aggregation.schedules_found"
	AttrSchedulesDropped = "aggregation.schedules_dropped"
	AttrCacheResult      = "aggregation.cache_result"
)

// CarrierTaskAttributes returns the attributes for a single carrier fetch span.
func CarrierTaskAttributes(scac, url string, attempt int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCarrier, scac),
		attribute.String(AttrCarrierURL, url),
		attribute.Int(AttrTaskAttempt, attempt),
	}
}

// RequestAttributes returns the attributes for an aggregation request span.
func RequestAttributes(originLocode, destinationLocode, dateFrom, dateTo string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrOriginLocode, originLocode),
		attribute.String(AttrDestinationLocode, destinationLocode),
		attribute.String(AttrDateFrom, dateFrom),
		attribute.String(AttrDateTo, dateTo),
	}
}

// AggregationAttributes returns the attributes recorded once a response has
// been assembled: how many schedules survived and were dropped, and whether
// the response was served from cache.
func AggregationAttributes(found, dropped int, cacheResult string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrSchedulesFound, found),
		attribute.Int(AttrSchedulesDropped, dropped),
		attribute.String(AttrCacheResult, cacheResult),
	}
}

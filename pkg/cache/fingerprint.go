package cache

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// responseNamespace roots every fingerprint in the fixed DNS UUID namespace
// so that keys are stable across process restarts and deployments.
var responseNamespace = uuid.NameSpaceDNS

// Fingerprint computes a deterministic UUIDv5 cache key for a carrier
// response, combining the carrier tag, the canonical request parameters and
// the optional filter parameters. Field order is fixed so the same logical
// request always produces the same key, regardless of map iteration order.
func Fingerprint(carrierTag string, params map[string]string, filters map[string]string) string {
	var b strings.Builder
	b.WriteString(carrierTag)

	writeSorted(&b, params)
	writeSorted(&b, filters)

	return uuid.NewSHA1(responseNamespace, []byte(b.String())).String()
}

func writeSorted(b *strings.Builder, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := m[k]
		if v == "" {
			v = "none"
		}
		fmt.Fprintf(b, "|%s=%s", k, v)
	}
}

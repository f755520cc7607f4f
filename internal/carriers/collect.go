package carriers

import (
	"iter"

	"schedulep2p/internal/domain"
)

// Collect drains a carrier adapter's lazy (Schedule, error) sequence into
// a slice, the shape the task manager's typed Group wants to carry as a
// task's result. It stops at the first error the sequence yields and
// returns it alongside whatever schedules were collected before it, so a
// genuine transport failure (not just a context deadline) reaches
// fanOut and can be retried via taskmanager.Retryable — mirroring the
// (Result, error) iterator idiom pkg/httpclient.Client.Parse already uses.
func Collect(seq iter.Seq2[domain.Schedule, error]) ([]domain.Schedule, error) {
	var out []domain.Schedule
	for s, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
	return out, nil
}

package store

import (
	"strings"

	"github.com/example/seqtrack/internal/seq"
)

// projection renders the plain-text view of the population: one
// fixed-width line per record, in id order, followed by the reservation
// holder listing. Derived only; never read back.
func projection(records []*seq.Record) []byte {
	var b strings.Builder
	for _, r := range records {
		b.WriteString(r.String())
		b.WriteByte('\n')
	}

	var reserved strings.Builder
	for _, r := range records {
		reserved.WriteString(r.ReservationLine())
	}
	if reserved.Len() > 0 {
		b.WriteByte('\n')
		b.WriteString("Reservations:\n")
		b.WriteString(reserved.String())
	}
	return []byte(b.String())
}

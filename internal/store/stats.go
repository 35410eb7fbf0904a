package store

import "github.com/example/seqtrack/internal/seq"

// Stats summarizes the population for the operator-facing reports.
type Stats struct {
	Total       int                `json:"total"`
	Live        int                `json:"live"`
	Reserved    int                `json:"reserved"`
	ByStatus    map[seq.Status]int `json:"by_status"`
	TotalLength int                `json:"total_length"`
	AvgLength   float64            `json:"avg_length"`
	MaxDigits   int                `json:"max_digits"`
}

// Summarize computes population statistics over the loaded state.
func Summarize(st *State) Stats {
	s := Stats{ByStatus: make(map[seq.Status]int)}
	for _, r := range st.Records {
		s.Total++
		s.ByStatus[r.Status]++
		s.TotalLength += r.Length
		if r.Status == seq.StatusActive {
			s.Live++
			if r.ReservedBy != "" {
				s.Reserved++
			}
			if d := r.Digits(); d > s.MaxDigits {
				s.MaxDigits = d
			}
		}
	}
	if s.Total > 0 {
		s.AvgLength = float64(s.TotalLength) / float64(s.Total)
	}
	return s
}

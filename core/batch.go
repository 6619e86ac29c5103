package core

// BatchSummary is returned by operations that process many items and keep going when one of them fails.
type BatchSummary struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

func (s BatchSummary) Total() int { return s.Sent + s.Failed + s.Skipped }

func (s *BatchSummary) Add(other BatchSummary) {
	s.Sent += other.Sent
	s.Failed += other.Failed
	s.Skipped += other.Skipped
}

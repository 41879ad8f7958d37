package types

// VectoriseStats counts the outcome of one vectorise run, per file
type VectoriseStats struct {
	Add     int `json:"add"`
	Update  int `json:"update"`
	Removed int `json:"removed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Total returns the number of files processed
func (s VectoriseStats) Total() int {
	return s.Add + s.Update + s.Skipped + s.Failed
}

package grouping

// SizeThreshold is a combination count above which a warning is raised.
type SizeThreshold struct {
	Limit   int64
	Message string
}

// SizeThresholds are checked in ascending order; every exceeded limit warns.
var SizeThresholds = []SizeThreshold{
	{Limit: 1_000, Message: "The number of combinations to be tested is over 1 thousand. Memory usage and run time could be large."},
	{Limit: 10_000, Message: "The number of combinations to be tested is over 10 thousand. Memory usage and run time could be very large."},
	{Limit: 1_000_000, Message: "The number of combinations to be tested is over 1 million. Memory usage and run time could be huge."},
	{Limit: 1_000_000_000, Message: "The number of combinations to be tested is over 1 billion. ...What are you doing exactly?"},
}

// SizeWarnings returns the warnings triggered by count, smallest threshold first.
func SizeWarnings(count int64) []SizeThreshold {
	var hit []SizeThreshold
	for _, th := range SizeThresholds {
		if count > th.Limit {
			hit = append(hit, th)
		}
	}
	return hit
}

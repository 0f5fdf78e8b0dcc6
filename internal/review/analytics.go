package review

// Aggregate builds run analytics from a schedule. Total time is the wall clock
// of the batch phase; TotalBatches counts attempted batches, so a deadline cut
// shows up as fewer batches and a lower success rate.
func Aggregate(totalClauses int, sched Schedule, rateLimitHits int) Analytics {
	a := Analytics{
		TotalTimeTaken: sched.Elapsed.Seconds(),
		TotalClauses:   totalClauses,
		TotalBatches:   sched.Attempted,
		RateLimitHits:  rateLimitHits,
	}

	successful := 0
	for _, o := range sched.Outcomes {
		a.RiskyClauses += len(o.Findings)
		successful += o.SuccessfulClauses()
	}

	if a.TotalBatches > 0 {
		a.AverageTimePerBatch = a.TotalTimeTaken / float64(a.TotalBatches)
	}
	if totalClauses > 0 {
		a.SuccessRate = float64(successful) / float64(totalClauses) * 100
	}
	return a
}

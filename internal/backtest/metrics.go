package backtest

// Aggregate reduces a set of trade results to portfolio statistics.
// Every field is recomputed from scratch and every reduction commutes, so
// the summary is identical however the results were ordered or batched.
// An empty input produces all zeros, never NaN.
func Aggregate(results []TradeResult) RunSummary {
	summary := RunSummary{TotalTrades: len(results)}
	if len(results) == 0 {
		return summary
	}

	var roiSum, grossProfit, grossLoss, worstDrawdown float64
	for _, r := range results {
		if r.PnL > 0 {
			summary.Wins++
			grossProfit += r.PnL
		} else {
			summary.Losses++
			grossLoss += -r.PnL
		}
		roiSum += r.ROI
		if r.MaxDrawdown < worstDrawdown {
			worstDrawdown = r.MaxDrawdown
		}
	}

	summary.WinRate = float64(summary.Wins) / float64(summary.TotalTrades) * 100
	summary.AvgROI = roiSum / float64(summary.TotalTrades) * 100
	summary.MaxDrawdown = worstDrawdown * 100

	switch {
	case grossLoss == 0 && grossProfit > 0:
		summary.ProfitFactor = ProfitFactor{NoLosses: true}
	case grossLoss == 0:
		summary.ProfitFactor = ProfitFactor{} // no profits either
	default:
		summary.ProfitFactor = ProfitFactor{Ratio: grossProfit / grossLoss}
	}

	return summary
}

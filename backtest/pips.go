package backtest

// EUR/USD: 1 pip = 0.0001.

func PriceToPips(diff float64) float64 {
	return diff * 10000
}

func PipsToPrice(pips float64) float64 {
	return pips / 10000
}

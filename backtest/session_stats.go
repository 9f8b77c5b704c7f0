package backtest

type SessionStats struct {
	Session Session `json:"session"`
	Trades  int     `json:"trades"`
	Pips    float64 `json:"pips"`
	WinRate float64 `json:"win_rate"`
}

type SessionReport struct {
	EUR              SessionStats `json:"eur"`
	US               SessionStats `json:"us"`
	DaysWithTwo      int          `json:"days_with_2_trades"`
	DaysWithOne      int          `json:"days_with_1_trade"`
	DaysWithoutTrade int          `json:"days_with_0_trades"`
}

// AnalyzeSessions breaks a dual-session run down by origin session and
// counts how many bars produced two, one or no trades. Trades are grouped
// by the bar they were opened on.
func AnalyzeSessions(res Result) SessionReport {
	rep := SessionReport{
		EUR: SessionStats{Session: SessionEUR},
		US:  SessionStats{Session: SessionUS},
	}
	var eurWins, usWins int
	perBar := make(map[int]int)
	for _, t := range res.Trades {
		perBar[t.EntryIndex]++
		switch t.Session {
		case SessionEUR:
			rep.EUR.Trades++
			rep.EUR.Pips += t.Pips
			if t.Pips > 0 {
				eurWins++
			}
		case SessionUS:
			rep.US.Trades++
			rep.US.Pips += t.Pips
			if t.Pips > 0 {
				usWins++
			}
		}
	}
	if rep.EUR.Trades > 0 {
		rep.EUR.WinRate = float64(eurWins) / float64(rep.EUR.Trades) * 100
	}
	if rep.US.Trades > 0 {
		rep.US.WinRate = float64(usWins) / float64(rep.US.Trades) * 100
	}

	for _, n := range perBar {
		if n >= 2 {
			rep.DaysWithTwo++
		} else {
			rep.DaysWithOne++
		}
	}
	rep.DaysWithoutTrade = len(res.EquityCurve) - len(perBar)
	if rep.DaysWithoutTrade < 0 {
		rep.DaysWithoutTrade = 0
	}
	return rep
}

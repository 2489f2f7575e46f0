package stocks

// Index constituent lists for the Indian market. nifty100 and niftynext50
// are placeholders until their lists are sourced.
var indices = map[string][]string{
	"nifty50": {
		"RELIANCE.NS", "TCS.NS", "HDFCBANK.NS", "INFY.NS", "ICICIBANK.NS",
		"HINDUNILVR.NS", "ITC.NS", "SBIN.NS", "BHARTIARTL.NS", "KOTAKBANK.NS",
		"LT.NS", "AXISBANK.NS", "ASIANPAINT.NS", "MARUTI.NS", "SUNPHARMA.NS",
		"TITAN.NS", "BAJFINANCE.NS", "ULTRACEMCO.NS", "NESTLEIND.NS", "WIPRO.NS",
		"HCLTECH.NS", "TATAMOTORS.NS", "ONGC.NS", "NTPC.NS", "POWERGRID.NS",
		"TATASTEEL.NS", "M&M.NS", "TECHM.NS", "ADANIENT.NS", "JSWSTEEL.NS",
		"INDUSINDBK.NS", "HINDALCO.NS", "COALINDIA.NS", "BAJAJFINSV.NS", "CIPLA.NS",
		"DRREDDY.NS", "EICHERMOT.NS", "BRITANNIA.NS", "GRASIM.NS", "APOLLOHOSP.NS",
		"BPCL.NS", "DIVISLAB.NS", "TATACONSUM.NS", "HEROMOTOCO.NS", "SHRIRAMFIN.NS",
		"SBILIFE.NS", "ADANIPORTS.NS", "UPL.NS", "BAJAJ-AUTO.NS", "LTIM.NS",
	},
	"banknifty": {
		"HDFCBANK.NS", "ICICIBANK.NS", "SBIN.NS", "KOTAKBANK.NS", "AXISBANK.NS",
		"INDUSINDBK.NS", "BANDHANBNK.NS", "FEDERALBNK.NS", "AUBANK.NS", "IDFCFIRSTB.NS",
		"PNB.NS", "BANKBARODA.NS",
	},
	"nifty100":    {},
	"niftynext50": {},
}

// Indices returns the known index names.
func Indices() []string {
	names := make([]string, 0, len(indices))
	for name := range indices {
		names = append(names, name)
	}
	return names
}

package models

// ExchangeRateFile is the on-disk FX history: one observation per currency
// and day, each quoted as units of Ccy per one USD.
type ExchangeRateFile struct {
	Root struct {
		Obs []struct {
			TimePeriod string `json:"_TIME_PERIOD"`
			ObsValue   string `json:"_OBS_VALUE"`
			Ccy        string `json:"_CCY"`
		} `json:"Obs"`
	} `json:"root"`
}

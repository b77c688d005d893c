package model

// SeriesID names one independently refreshed data feed.
type SeriesID string

const (
	SeriesPrice  SeriesID = "price"
	SeriesHourly SeriesID = "hourly"
	SeriesDaily  SeriesID = "daily"
)

// AllSeries lists every series in refresh order.
var AllSeries = []SeriesID{SeriesPrice, SeriesHourly, SeriesDaily}

// Timeframe identifies a percentage-change window.
type Timeframe string

const (
	OneHour        Timeframe = "1h"
	OneDay         Timeframe = "1d"
	TwentyFourHour Timeframe = "24h"
)

// AllTimeframes lists the timeframes in display order.
var AllTimeframes = []Timeframe{TwentyFourHour, OneHour, OneDay}

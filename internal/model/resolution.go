package model

import "fmt"

// resolutionSeconds maps a chart resolution code to its bar duration in
// seconds. The code set is fixed by the exchange's UDF history endpoint.
var resolutionSeconds = map[string]int64{
	"1":   60,
	"5":   300,
	"15":  900,
	"30":  1800,
	"60":  3600,
	"180": 10800,
	"240": 14400,
	"360": 21600,
	"720": 43200,
	"D":   86400,
	"2D":  172800,
	"3D":  259200,
}

// ResolutionSeconds returns the bar duration for a resolution code.
// An unknown code is a configuration error: callers must refuse to start
// rather than fall back to zero, which would loop the backfill forever.
func ResolutionSeconds(resolution string) (int64, error) {
	secs, ok := resolutionSeconds[resolution]
	if !ok {
		return 0, fmt.Errorf("unknown resolution %q", resolution)
	}
	return secs, nil
}

// Package timeutil keeps the storage/display boundary honest: everything in
// the pipeline is a UTC instant or epoch seconds; the Tehran wall clock and
// the Jalali calendar appear only when talking to the exchange's UDF
// endpoint or rendering for the operator.
package timeutil

import (
	"fmt"
	"time"

	ptime "github.com/yaa110/go-persian-calendar"
)

// DefaultZone is the exchange's local zone. Overridable through config
// (local_time_zone_name) via SetZone at startup.
var zone = mustZone("Asia/Tehran")

func mustZone(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("timeutil: cannot load zone %s: %v", name, err))
	}
	return loc
}

// SetZone switches the display zone. Returns an error on unknown IANA names.
func SetZone(name string) error {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("load time zone %q: %w", name, err)
	}
	zone = loc
	return nil
}

// Now returns the current instant. Epoch seconds are zone-independent, so
// this is what goes into `to`/`from` request fields.
func Now() time.Time { return time.Now().UTC() }

// NowUnix returns current epoch seconds.
func NowUnix() int64 { return time.Now().Unix() }

// Local renders a UTC instant on the configured wall clock.
func Local(t time.Time) time.Time { return t.In(zone) }

// FormatJalali renders an instant as a Jalali "YYYY-MM-DD HH:MM:SS" string
// in the configured zone. Display only; never stored.
func FormatJalali(t time.Time) string {
	pt := ptime.New(t.In(zone))
	return pt.Format("yyyy-MM-dd HH:mm:ss")
}

// ParseJalali parses a Jalali "YYYY-MM-DD HH:MM:SS" string (backtest config
// dates) into a UTC instant.
func ParseJalali(s string) (time.Time, error) {
	var y, mo, d, h, mi, sec int
	if _, err := fmt.Sscanf(s, "%d-%d-%d %d:%d:%d", &y, &mo, &d, &h, &mi, &sec); err != nil {
		return time.Time{}, fmt.Errorf("parse jalali date %q: %w", s, err)
	}
	pt := ptime.Date(y, ptime.Month(mo), d, h, mi, sec, 0, zone)
	return pt.Time().UTC(), nil
}

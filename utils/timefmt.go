package utils

import (
	"sync"
	"time"
	_ "time/tzdata" // display zones must resolve on hosts without zoneinfo
)

var zoneCache sync.Map // name -> *time.Location

// FormatDateTime renders the instant t in the named IANA zone using a Go
// layout. An unknown zone renders t unchanged in UTC with the same layout.
func FormatDateTime(t time.Time, zone, layout string) string {
	t = t.UTC()
	if loc, ok := loadZone(zone); ok {
		return t.In(loc).Format(layout)
	}
	return t.Format(layout)
}

func loadZone(name string) (*time.Location, bool) {
	if name == "" {
		return nil, false
	}
	if v, ok := zoneCache.Load(name); ok {
		return v.(*time.Location), true
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, false
	}
	zoneCache.Store(name, loc)
	return loc, true
}

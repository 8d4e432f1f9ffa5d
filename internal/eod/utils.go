package eod

import (
	"path/filepath"
	"time"
)

func istLocation() *time.Location {
	return time.FixedZone("IST", 19800)
}

func eodCSVPath(dir, date string) string {
	if dir == "" {
		dir = "logs"
	}
	return filepath.Join(dir, "eod", date+".csv")
}

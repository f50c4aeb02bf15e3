package source

import (
	"regexp"
	"strconv"
	"time"
)

var (
	halfYearRe = regexp.MustCompile(`H([12])\s*(\d{4})`)
	fileDateRe = regexp.MustCompile(`(\d{2})_(\d{2})_(\d{4})`)
)

// FilterByPeriod keeps files belonging to [start, end]. Modified time
// wins when present; otherwise the filename is checked for half-year or
// MM_DD_YYYY markers.
func FilterByPeriod(files []FileInfo, start, end time.Time) []FileInfo {
	var out []FileInfo
	for _, f := range files {
		if !f.Modified.IsZero() {
			d := f.Modified.UTC().Truncate(24 * time.Hour)
			if !d.Before(start) && !d.After(end) {
				out = append(out, f)
				continue
			}
		}
		if NameMatchesPeriod(f.Name, start, end) {
			out = append(out, f)
		}
	}
	return out
}

// NameMatchesPeriod reports whether a filename carries date info inside
// the period.
func NameMatchesPeriod(name string, start, end time.Time) bool {
	if m := halfYearRe.FindStringSubmatch(name); m != nil {
		half, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[2])
		var fileStart, fileEnd time.Time
		if half == 1 {
			fileStart = time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
			fileEnd = time.Date(year, 6, 30, 0, 0, 0, 0, time.UTC)
		} else {
			fileStart = time.Date(year, 7, 1, 0, 0, 0, 0, time.UTC)
			fileEnd = time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC)
		}
		return within(fileStart, start, end) || within(fileEnd, start, end)
	}

	if m := fileDateRe.FindStringSubmatch(name); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
			return within(d, start, end)
		}
	}
	return false
}

func within(d, start, end time.Time) bool {
	return !d.Before(start) && !d.After(end)
}

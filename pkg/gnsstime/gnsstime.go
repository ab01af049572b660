// Package gnsstime 提供 GNSS 产品中常见日历编码与公历日期之间的换算。
package gnsstime

import (
	"math"
	"time"

	"cloud.google.com/go/civil"
)

// GPSEpoch: GPS 时起点（第 0 周第 0 天）。
var GPSEpoch = civil.Date{Year: 1980, Month: 1, Day: 6}

// MJDEpoch: 简化儒略日 0 对应的日期（JD 2400000.5）。
var MJDEpoch = civil.Date{Year: 1858, Month: 11, Day: 17}

// FromGPSWeek 将 GPS 周与周内日（0=周日）换算为日期：GPSEpoch + 7*week + dow 天。
func FromGPSWeek(week, dow int) civil.Date {
	return GPSEpoch.AddDays(7*week + dow)
}

// GPSWeek 为 FromGPSWeek 的逆运算。
func GPSWeek(d civil.Date) (week, dow int) {
	n := d.DaysSince(GPSEpoch)
	week = n / 7
	dow = n % 7
	if dow < 0 {
		week--
		dow += 7
	}
	return week, dow
}

// FromMJD 将（可带小数的）MJD 换算为所在公历日期。
func FromMJD(mjd float64) civil.Date {
	return MJDEpoch.AddDays(int(math.Floor(mjd)))
}

// MJD 返回日期 0 时对应的整数 MJD。
func MJD(d civil.Date) int { return d.DaysSince(MJDEpoch) }

// PivotYear 处理两位年份：[0,79] → 2000+y，[80,99] → 1900+y；三位及以上原样返回。
func PivotYear(y int) int {
	switch {
	case y >= 0 && y < 80:
		return 2000 + y
	case y >= 80 && y < 100:
		return 1900 + y
	default:
		return y
	}
}

// Date 校验并构造日期；非法组合（如 2 月 30 日）返回 false。
func Date(year, month, day int) (civil.Date, bool) {
	d := civil.Date{Year: year, Month: time.Month(month), Day: day}
	return d, d.IsValid()
}

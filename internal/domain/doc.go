// Package domain models Seoul cultural events and KMA short-term forecasts.
//
// # Data Sources
//
// Events come from the Seoul Open Data Plaza "culturalEventInfo" dataset, served
// at {base}/{key}/json/culturalEventInfo/{start}/{end}. Rows live under
// culturalEventInfo.row and every value is a loosely typed string: empty strings,
// stray whitespace and missing keys are normal.
//
// Forecasts come from the KMA village forecast service (getVilageFcst). Each item
// is one (forecast date, forecast hour, category) sample for a grid cell.
//
// # Event Field Conventions
//
//	CULTCODE   numeric event code (often missing)
//	HMPG_ADDR  homepage URL, usually carrying ?cultcode=NNN
//	STRTDATE   "2024-05-01 00:00:00.0" style local timestamp
//	END_DATE   same format as STRTDATE
//	RGSTDATE   "2024-04-20" or "20240420"
//	LOT, LAT   longitude / latitude as decimal strings
//	IS_FREE    "무료" / "유료"
//
// Naive timestamps are stored as UTC wall time without shifting.
//
// # Forecast Categories
//
//	TMP   hourly temperature (°C)      -> daily mean
//	POP   precipitation probability (%) -> daily max
//	PM10  particulate reading           -> last value seen for the day
//
// Other categories are ignored.
//
// # ID Generation
//
// Event IDs resolve in order: native CULTCODE, the cultcode query parameter of
// HMPG_ADDR, then a SHA-1 digest of TITLE|STRTDATE|END_DATE|PLACE truncated to
// 48 bits. The digest is stable across runs but changes whenever one of those
// four fields is edited upstream, producing a new row. See [ResolveEventID].
package domain

// Package ics reads external appointment feeds and writes the job calendar
// as iCalendar.
//
// Feed events become read-only calendar events flagged as external.
// Recurring feed events are expanded into occurrences for a window through
// the recurrence package, with RECURRENCE-ID overrides replacing the
// instance they name.
package ics

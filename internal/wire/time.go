// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package wire

import (
	"errors"
	"time"
)

// =============================================================================
// WIRE TIMESTAMPS
// =============================================================================

// wireTimeLayout is the canonical encoding: UTC, exactly six fractional
// digits. The zero-padded .000000 verb keeps trailing zeros on the wire.
const wireTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// parseLayouts are accepted on input, most specific first. Servers are
// allowed to drop trailing zero digits from the fraction and some omit the
// zone designator entirely (those values are UTC by contract).
var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
}

// ErrBadTimestamp is returned when a wire timestamp matches no known shape.
var ErrBadTimestamp = errors.New("wire: unparseable timestamp")

// FormatTime encodes t for the wire: ISO-8601, UTC, microsecond precision.
// Sub-microsecond digits are truncated, never rounded through floats.
func FormatTime(t time.Time) string {
	return t.UTC().Truncate(time.Microsecond).Format(wireTimeLayout)
}

// ParseTime decodes a wire timestamp. The fraction may carry one to nine
// digits or be absent; short fractions are treated as if padded to six
// digits. Go's parser does all fractional math on integer nanoseconds, so
// no floating-point rounding can creep in.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range parseLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.Truncate(time.Microsecond), nil
		}
	}
	return time.Time{}, ErrBadTimestamp
}

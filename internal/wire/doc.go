// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package wire implements the byte-level protocol spoken by the Sequence
// API's streaming endpoints.
//
// The server answers continue/extend requests with a stream of
// newline-delimited JSON records. Network reads may split a record at any
// byte offset, and some servers omit the trailing newline on the final
// record, so decoding is done by ChunkDecoder, which carries undecodable
// trailing bytes across reads.
//
// The package also owns the wire timestamp format: ISO-8601 in UTC with
// microsecond-precision fractional seconds. Encoding always emits exactly
// six fractional digits; decoding tolerates servers that drop trailing
// zeros. All sub-second math is integer based, so values round-trip
// exactly.
package wire

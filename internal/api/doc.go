// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the Sequence API.
//
// The Sequence API exposes conversation threads ("sequences") and their
// messages over plain JSON endpoints, plus two streaming endpoints
// (continue and extend) that answer with newline-delimited JSON records
// decoded by the wire package.
//
// Paths and semantics mirror the server exactly:
//
//	POST /messages
//	POST /sequences
//	GET  /sequences/{id}/as-json
//	GET  /sequences/.recent/as-json
//	POST /sequences/{id}/continue      (streaming)
//	POST /sequences/{id}/extend        (streaming)
//	POST /sequences/{id}/autoname
//	POST /sequences/{id}/human_desc
//	POST /sequences/{id}/user_pinned
package api

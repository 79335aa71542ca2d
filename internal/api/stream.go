// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/jeranaias/strand/internal/wire"
)

// =============================================================================
// STREAMING CONTINUE / EXTEND
// =============================================================================

// RecordFunc is called synchronously for each decoded stream record, in
// arrival order. The decode loop does not read further until it returns.
type RecordFunc func(rec wire.Record)

// ContinueSequence opens POST /sequences/{id}/continue and decodes the
// newline-delimited JSON response, invoking fn per record. It returns when
// the stream ends or ctx is cancelled.
func (c *Client) ContinueSequence(ctx context.Context, id int64, params ContinuationParams, fn RecordFunc) (*StreamResult, error) {
	return c.stream(ctx, "/sequences/"+strconv.FormatInt(id, 10)+"/continue", params, fn)
}

// ExtendSequence is ContinueSequence against the extend endpoint. The two
// operations share one wire protocol; extend merely follows a freshly
// appended user message.
func (c *Client) ExtendSequence(ctx context.Context, id int64, params ContinuationParams, fn RecordFunc) (*StreamResult, error) {
	return c.stream(ctx, "/sequences/"+strconv.FormatInt(id, 10)+"/extend", params, fn)
}

func (c *Client) stream(ctx context.Context, path string, params ContinuationParams, fn RecordFunc) (*StreamResult, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeEncode, Message: "failed to encode continuation params", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeEncode, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	// No client timeout on streaming requests; generation can run for
	// minutes. Lifetime is governed by ctx.
	streamClient := &http.Client{}

	resp, err := streamClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, context.Canceled
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ErrServerUnreachable
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrSequenceNotFound
	}
	if !statusOK(resp.StatusCode) {
		return nil, errorFromBody(resp)
	}

	return c.consume(ctx, resp.Body, fn)
}

// consume runs the decode loop: raw reads through the chunk decoder, each
// record handed to fn in order.
func (c *Client) consume(ctx context.Context, body io.Reader, fn RecordFunc) (*StreamResult, error) {
	dec := wire.NewChunkDecoder()
	buf := make([]byte, c.config.ReadBufferSize)

	for {
		select {
		case <-ctx.Done():
			return streamResult(dec), ctx.Err()
		default:
		}

		n, err := body.Read(buf)
		if n > 0 {
			for _, rec := range dec.Feed(buf[:n]) {
				fn(rec)
			}
		}
		if err == io.EOF {
			return streamResult(dec), nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return streamResult(dec), ctx.Err()
			}
			return streamResult(dec), &ClientError{Type: ErrTypeConnection, Message: "stream read failed", Cause: err}
		}
	}
}

func streamResult(dec *wire.ChunkDecoder) *StreamResult {
	return &StreamResult{
		CorruptChunks: dec.CorruptCount(),
		TrailingBytes: len(dec.Pending()),
	}
}

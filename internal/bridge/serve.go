// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/rotor-bridge/pkg/types"
)

// Request is one line of the driver protocol.
type Request struct {
	Iteration int                `json:"iteration"`
	Design    types.DesignVector `json:"design"`
}

// Response answers one Request. Exactly one of Record and Error is set.
type Response struct {
	Iteration int                     `json:"iteration"`
	Record    *types.EvaluationRecord `json:"record,omitempty"`
	Error     string                  `json:"error,omitempty"`
	Stop      bool                    `json:"stop,omitempty"`
}

// ServeSummary counts the outcome of a Serve loop.
type ServeSummary struct {
	Evaluated int
	Penalized int
	Rejected  int
}

// Total returns the number of requests answered.
func (s ServeSummary) Total() int {
	return s.Evaluated + s.Penalized + s.Rejected
}

type line struct {
	text string
	err  error
}

// Serve reads JSON requests from r, one per line, evaluates each with Step
// and writes one JSON response per line to w. Malformed requests are
// answered with an error and skipped.
//
// Cancelling ctx stops the loop between evaluations; an evaluation already
// running completes and is recorded. The ledger is flushed before Serve
// returns. Serve returns nil at end of input, types.ErrEarlyStop when the
// search has stalled, and ctx.Err() when cancelled.
func (s *Session) Serve(ctx context.Context, r io.Reader, w io.Writer) (sum ServeSummary, err error) {
	defer func() {
		if ferr := s.Flush(); ferr != nil && err == nil {
			err = ferr
		}
	}()

	lines := make(chan line)
	done := make(chan struct{})
	defer close(done)
	go scanLines(r, lines, done)

	enc := json.NewEncoder(w)
	for {
		var ln line
		var ok bool
		select {
		case <-ctx.Done():
			s.log.Info("serve interrupted")
			return sum, ctx.Err()
		case ln, ok = <-lines:
		}
		if !ok {
			return sum, nil
		}
		if ln.err != nil {
			return sum, fmt.Errorf("reading requests: %w", ln.err)
		}
		if strings.TrimSpace(ln.text) == "" {
			continue
		}

		var req Request
		err := json.Unmarshal([]byte(ln.text), &req)
		if err == nil && req.Design == nil {
			err = errors.New("no design")
		}
		if err != nil {
			sum.Rejected++
			if werr := enc.Encode(Response{Error: fmt.Sprintf("malformed request: %v", err)}); werr != nil {
				return sum, fmt.Errorf("writing response: %w", werr)
			}
			continue
		}

		rec, err := s.Step(context.WithoutCancel(ctx), req.Iteration, req.Design)
		if err != nil {
			resp := Response{Iteration: req.Iteration, Error: err.Error()}
			if errors.Is(err, types.ErrEarlyStop) {
				resp.Stop = true
			}
			sum.Rejected++
			if werr := enc.Encode(resp); werr != nil {
				return sum, errors.Join(err, fmt.Errorf("writing response: %w", werr))
			}
			return sum, err
		}

		if rec.Penalized {
			sum.Penalized++
		} else {
			sum.Evaluated++
		}
		if err := enc.Encode(Response{Iteration: req.Iteration, Record: &rec}); err != nil {
			return sum, fmt.Errorf("writing response: %w", err)
		}
	}
}

func scanLines(r io.Reader, out chan<- line, done <-chan struct{}) {
	defer close(out)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		select {
		case out <- line{text: sc.Text()}:
		case <-done:
			return
		}
	}
	if err := sc.Err(); err != nil {
		select {
		case out <- line{err: err}:
		case <-done:
		}
	}
}

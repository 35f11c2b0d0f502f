package portscan

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/tldr-it-stepankutaj/ghostsh/pkg/sdk"
)

const (
	FirstPort      = 1
	LastPort       = 1024
	DefaultTimeout = 500 * time.Millisecond
	DefaultWorkers = 100
)

// Dialer opens connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Scanner performs TCP connect probes over a contiguous port range.
type Scanner struct {
	Dialer  Dialer
	Timeout time.Duration
	Workers int
	From    int
	To      int
}

// New returns a scanner over the standard 1-1024 range. Non-positive values
// fall back to the defaults.
func New(timeout time.Duration, workers int) *Scanner {
	return &Scanner{
		Dialer:  &net.Dialer{},
		Timeout: timeout,
		Workers: workers,
		From:    FirstPort,
		To:      LastPort,
	}
}

func (*Scanner) Name() string        { return "portscan" }
func (*Scanner) Description() string { return "TCP connect scan of ports 1-1024" }

// Register binds the portscan command.
func (s *Scanner) Register(register sdk.RegisterFunc) {
	register(s.Name(), s.Run)
}

// Run is the portscan command handler.
func (s *Scanner) Run(ctx context.Context, out io.Writer, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(out, "Usage: portscan <hostname>")
		return nil
	}
	target := args[0]
	fmt.Fprintf(out, "Scanning ports on %s...\n", target)

	open, err := s.Scan(ctx, target, func(port int) {
		fmt.Fprintf(out, "Port %d: OPEN\n", port)
	})
	if err != nil {
		return fmt.Errorf("scan interrupted after %d open ports: %w", len(open), err)
	}
	if len(open) == 0 {
		fmt.Fprintf(out, "No open ports found in range %d-%d.\n", s.from(), s.to())
	}
	return nil
}

type result struct {
	idx  int
	open bool
	// aborted marks an attempt cut short by cancellation rather than refused.
	aborted bool
}

const (
	pending int8 = iota
	closed
	opened
)

// Scan probes every port in the range and returns the open ones in ascending
// order. onOpen, if set, is called for each open port in ascending order as
// soon as all lower ports have been classified. A failed attempt counts as
// closed and never stops the scan. Cancelling ctx stops new attempts; the
// ports found so far are returned with ctx's error. A scan that finished
// every attempt before the cancellation returns no error.
func (s *Scanner) Scan(ctx context.Context, target string, onOpen func(port int)) ([]int, error) {
	from, to := s.from(), s.to()
	if to < from {
		return nil, nil
	}
	n := to - from + 1
	workers := s.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	results := make(chan result, workers)
	go s.dispatch(ctx, target, from, n, workers, results)

	state := make([]int8, n)
	open := make([]int, 0, 8)
	next := 0
	interrupted := false
	emit := func(i int) {
		port := from + i
		open = append(open, port)
		if onOpen != nil {
			onOpen(port)
		}
	}
	for r := range results {
		interrupted = interrupted || r.aborted
		if r.open {
			state[r.idx] = opened
		} else {
			state[r.idx] = closed
		}
		for next < n && state[next] != pending {
			if state[next] == opened {
				emit(next)
			}
			next++
		}
	}
	// Ports past a cancellation point were never attempted; flush what was found.
	if next < n {
		interrupted = true
	}
	for ; next < n; next++ {
		if state[next] == opened {
			emit(next)
		}
	}
	if interrupted {
		return open, ctx.Err()
	}
	return open, nil
}

// dispatch runs the probes on a bounded pool and closes results when done.
func (s *Scanner) dispatch(ctx context.Context, target string, from, n, workers int, results chan<- result) {
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	defer func() {
		wg.Wait()
		close(results)
	}()

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int) {
			defer func() { <-sem; wg.Done() }()
			open := s.probe(ctx, target, from+i)
			results <- result{idx: i, open: open, aborted: !open && ctx.Err() != nil}
		}(i)
	}
}

func (s *Scanner) probe(ctx context.Context, host string, port int) bool {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	dialer := s.Dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn, err := dialer.DialContext(cctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func (s *Scanner) from() int {
	if s.From <= 0 {
		return FirstPort
	}
	return s.From
}

func (s *Scanner) to() int {
	if s.To <= 0 {
		return LastPort
	}
	return s.To
}

package portscan

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDialer accepts connections on a fixed set of ports and records every attempt.
type fakeDialer struct {
	mu       sync.Mutex
	open     map[string]bool
	attempts []string
	onDial   func(addr string)
}

func newFakeDialer(host string, ports ...int) *fakeDialer {
	d := &fakeDialer{open: make(map[string]bool)}
	for _, p := range ports {
		d.open[net.JoinHostPort(host, strconv.Itoa(p))] = true
	}
	return d
}

func (d *fakeDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	d.mu.Lock()
	d.attempts = append(d.attempts, addr)
	hook := d.onDial
	d.mu.Unlock()
	if hook != nil {
		hook(addr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !d.open[addr] {
		return nil, errors.New("connection refused")
	}
	client, server := net.Pipe()
	_ = server.Close()
	return client, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.attempts)
}

func newTestScanner(d Dialer, workers int) *Scanner {
	s := New(50*time.Millisecond, workers)
	s.Dialer = d
	return s
}

func TestScan_ReportsOnlyOpenPortsAscending(t *testing.T) {
	for _, workers := range []int{1, 7, 100} {
		d := newFakeDialer("target.local", 80, 22)
		s := newTestScanner(d, workers)

		var streamed []int
		open, err := s.Scan(context.Background(), "target.local", func(p int) {
			streamed = append(streamed, p)
		})
		require.NoError(t, err)
		assert.Equal(t, []int{22, 80}, open, "workers=%d", workers)
		assert.Equal(t, []int{22, 80}, streamed, "workers=%d", workers)
		assert.Equal(t, LastPort-FirstPort+1, d.count(), "every port must be attempted")
	}
}

func TestScan_UnreachableHostAttemptsEveryPort(t *testing.T) {
	d := newFakeDialer("nowhere")
	s := newTestScanner(d, 16)

	open, err := s.Scan(context.Background(), "nowhere", nil)
	require.NoError(t, err)
	assert.Empty(t, open)
	assert.Equal(t, 1024, d.count())
}

func TestScan_CustomRange(t *testing.T) {
	d := newFakeDialer("h", 5, 9, 12)
	s := newTestScanner(d, 3)
	s.From, s.To = 5, 10

	open, err := s.Scan(context.Background(), "h", nil)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 9}, open)
	assert.Equal(t, 6, d.count())
}

func TestScan_CancelStopsNewAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := newFakeDialer("h", 3)
	d.onDial = func(addr string) {
		if addr == net.JoinHostPort("h", "10") {
			cancel()
		}
	}
	s := newTestScanner(d, 1)

	open, err := s.Scan(ctx, "h", nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int{3}, open)
	assert.Less(t, d.count(), 1024)
}

func TestRun_MissingTargetPrintsUsage(t *testing.T) {
	d := newFakeDialer("h")
	s := newTestScanner(d, 4)
	var out bytes.Buffer

	require.NoError(t, s.Run(context.Background(), &out, nil))
	assert.Equal(t, "Usage: portscan <hostname>\n", out.String())
	assert.Zero(t, d.count())
}

func TestRun_StreamsOpenPorts(t *testing.T) {
	d := newFakeDialer("10.0.0.1", 443, 22, 80)
	s := newTestScanner(d, 32)
	var out bytes.Buffer

	require.NoError(t, s.Run(context.Background(), &out, []string{"10.0.0.1"}))
	assert.Equal(t,
		"Scanning ports on 10.0.0.1...\nPort 22: OPEN\nPort 80: OPEN\nPort 443: OPEN\n",
		out.String())
}

func TestRun_NoOpenPorts(t *testing.T) {
	s := newTestScanner(newFakeDialer("h"), 8)
	var out bytes.Buffer

	require.NoError(t, s.Run(context.Background(), &out, []string{"h"}))
	assert.Contains(t, out.String(), "No open ports found in range 1-1024.")
}

func TestRun_RealListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	s := New(200*time.Millisecond, 4)
	s.From, s.To = port, port

	open, err := s.Scan(context.Background(), "127.0.0.1", nil)
	require.NoError(t, err)
	assert.Equal(t, []int{port}, open)
}

func TestScan_CancelAfterLastAttemptIsNotAnInterruption(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := newFakeDialer("h", 2, 4)
	s := newTestScanner(d, 1)
	s.From, s.To = 1, 4

	open, err := s.Scan(ctx, "h", func(p int) {
		// The last port has already been classified when it is emitted.
		if p == 4 {
			cancel()
		}
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, open)
	assert.Equal(t, 4, d.count())
}

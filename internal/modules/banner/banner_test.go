package banner

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serve accepts one connection and runs fn on it.
func serve(t *testing.T, fn func(net.Conn)) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		fn(conn)
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestGrab_GreetingBanner(t *testing.T) {
	port := serve(t, func(c net.Conn) {
		_, _ = c.Write([]byte("SSH-2.0-OpenSSH_9.6\r\n"))
		time.Sleep(50 * time.Millisecond)
	})
	p := &Plugin{Timeout: time.Second}

	res, err := p.Grab(context.Background(), "127.0.0.1", port)
	require.NoError(t, err)
	assert.Equal(t, "SSH", res.Service)
	assert.Equal(t, "OpenSSH_9.6", res.Version)
}

func TestGrab_ProbesSilentService(t *testing.T) {
	port := serve(t, func(c net.Conn) {
		r := bufio.NewReader(c)
		line, err := r.ReadString('\n')
		if err != nil || !strings.HasPrefix(line, "GET") {
			return
		}
		_, _ = c.Write([]byte("HTTP/1.0 200 OK\r\nServer: nginx/1.25\r\n\r\n"))
	})
	p := &Plugin{Timeout: 200 * time.Millisecond}

	res, err := p.Grab(context.Background(), "127.0.0.1", port)
	require.NoError(t, err)
	assert.Equal(t, "HTTP", res.Service)
	assert.Equal(t, "nginx/1.25", res.Version)
}

func TestRun_Output(t *testing.T) {
	port := serve(t, func(c net.Conn) {
		_, _ = c.Write([]byte("+OK dovecot ready\r\n"))
		time.Sleep(50 * time.Millisecond)
	})
	var out bytes.Buffer

	err := New().Run(context.Background(), &out, []string{"127.0.0.1", strconv.Itoa(port)})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "POP3 dovecot")
	assert.Contains(t, out.String(), "+OK dovecot ready")
}

func TestRun_Usage(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, New().Run(context.Background(), &out, []string{"host"}))
	assert.Equal(t, "Usage: banner <hostname> <port>\n", out.String())

	out.Reset()
	require.NoError(t, New().Run(context.Background(), &out, []string{"host", "99999"}))
	assert.Equal(t, "Invalid port: 99999\n", out.String())
}

func TestRun_ConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	err = New().Run(context.Background(), &bytes.Buffer{}, []string{"127.0.0.1", strconv.Itoa(port)})
	assert.ErrorContains(t, err, "connect")
}

func TestIdentify(t *testing.T) {
	tests := []struct {
		banner, service, version string
		ok                       bool
	}{
		{"220 mail.example.com ESMTP Postfix", "SMTP", "mail.example.com", true},
		{"220 ProFTPD Server", "FTP", "", true},
		{"RFB 003.008", "VNC", "003.008", true},
		{"random noise", "", "", false},
	}
	for _, tt := range tests {
		svc, ver, ok := Identify(tt.banner)
		assert.Equal(t, tt.ok, ok, tt.banner)
		assert.Equal(t, tt.service, svc, tt.banner)
		assert.Equal(t, tt.version, ver, tt.banner)
	}
}

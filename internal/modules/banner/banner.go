// Package banner is a plugin linked into ghostsh. It grabs the greeting a TCP
// service sends and guesses what is listening.
package banner

import (
	"context"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tldr-it-stepankutaj/ghostsh/pkg/sdk"
)

const DefaultTimeout = 3 * time.Second

// Result describes what was found on host:port.
type Result struct {
	Host    string
	Port    int
	Service string
	Version string
	Banner  string
}

type signature struct {
	name    string
	pattern *regexp.Regexp
	version *regexp.Regexp
}

var signatures = []signature{
	{"SSH", regexp.MustCompile(`^SSH-`), regexp.MustCompile(`SSH-[\d.]+-(\S+)`)},
	{"HTTP", regexp.MustCompile(`^HTTP/|^<!DOCTYPE|^<html`), regexp.MustCompile(`(?i)Server:\s*(\S+)`)},
	{"SMTP", regexp.MustCompile(`^220[- ].*(SMTP|mail)`), regexp.MustCompile(`220[- ](\S+)`)},
	{"FTP", regexp.MustCompile(`^220[- ]`), regexp.MustCompile(`(\S+ftpd|\S+\s+FTP)`)},
	{"POP3", regexp.MustCompile(`^\+OK`), regexp.MustCompile(`\+OK\s+(\S+)`)},
	{"IMAP", regexp.MustCompile(`^\* OK.*IMAP`), nil},
	{"Redis", regexp.MustCompile(`-ERR.*redis|REDIS`), regexp.MustCompile(`redis_version:([\d.]+)`)},
	{"VNC", regexp.MustCompile(`^RFB `), regexp.MustCompile(`RFB ([\d.]+)`)},
	{"MySQL", regexp.MustCompile(`mysql|MariaDB`), regexp.MustCompile(`([\d.]+)-MariaDB|([\d.]+)-mysql`)},
}

var portHints = map[int]string{
	21: "FTP", 22: "SSH", 23: "Telnet", 25: "SMTP", 53: "DNS", 80: "HTTP",
	110: "POP3", 143: "IMAP", 443: "HTTPS", 445: "SMB", 3306: "MySQL",
	5432: "PostgreSQL", 5900: "VNC", 6379: "Redis", 8080: "HTTP-Proxy",
}

// Plugin implements sdk.Plugin.
type Plugin struct {
	Timeout time.Duration
}

func New() *Plugin { return &Plugin{Timeout: DefaultTimeout} }

func (*Plugin) Name() string { return "banner" }

func (p *Plugin) Register(register sdk.RegisterFunc) { register("banner", p.Run) }

// Run handles "banner <host> <port>".
func (p *Plugin) Run(ctx context.Context, out io.Writer, args []string) error {
	if len(args) < 2 {
		fmt.Fprintln(out, "Usage: banner <hostname> <port>")
		return nil
	}
	port, err := strconv.Atoi(args[1])
	if err != nil || port < 1 || port > 65535 {
		fmt.Fprintf(out, "Invalid port: %s\n", args[1])
		return nil
	}
	res, err := p.Grab(ctx, args[0], port)
	if err != nil {
		return err
	}
	switch {
	case res.Version != "":
		fmt.Fprintf(out, "%s:%d %s %s\n", res.Host, res.Port, res.Service, res.Version)
	default:
		fmt.Fprintf(out, "%s:%d %s\n", res.Host, res.Port, res.Service)
	}
	if res.Banner != "" {
		fmt.Fprintf(out, "  %s\n", truncate(res.Banner, 80))
	}
	return nil
}

// Grab connects, reads the greeting and, if the service stays silent, sends
// a generic HTTP probe.
func (p *Plugin) Grab(ctx context.Context, host string, port int) (*Result, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(cctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("connect %s:%d: %w", host, port, err)
	}
	defer func() { _ = conn.Close() }()

	res := &Result{Host: host, Port: port, Service: "unknown"}
	if hint, ok := portHints[port]; ok {
		res.Service = hint
	}

	text := read(conn, timeout)
	if text == "" {
		if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err == nil {
			if _, err := io.WriteString(conn, "GET / HTTP/1.0\r\nHost: "+host+"\r\n\r\n"); err == nil {
				text = read(conn, timeout)
			}
		}
	}
	res.Banner = text
	if svc, ver, ok := Identify(text); ok {
		res.Service, res.Version = svc, ver
	}
	return res, nil
}

// Identify matches a banner against known service signatures.
func Identify(text string) (service, version string, ok bool) {
	for _, sig := range signatures {
		if !sig.pattern.MatchString(text) {
			continue
		}
		if sig.version != nil {
			if m := sig.version.FindStringSubmatch(text); len(m) > 1 {
				for _, v := range m[1:] {
					if v != "" {
						return sig.name, v, true
					}
				}
			}
		}
		return sig.name, "", true
	}
	return "", "", false
}

func read(conn net.Conn, timeout time.Duration) string {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return ""
	}
	buf := make([]byte, 4096)
	n, _ := conn.Read(buf)
	return sanitize(string(buf[:n]))
}

// sanitize drops control characters other than line breaks and tabs.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r < 127) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(strings.ReplaceAll(s, "\r", ""), "\n", " ")
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

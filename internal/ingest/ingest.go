// Package ingest supplies input adapters that turn an external line source
// into validated event.LogEvent values pushed onto the event queue. None of
// the adapters is part of the detection core's contract (spec.md §1 treats the
// event source as an external collaborator); they exist so the daemon has a
// way to actually receive events end to end.
package ingest

import (
	"bufio"
	"context"
	"io"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/skywalker-88/nightwatch/internal/event"
)

// rawLine is the line-delimited JSON shape both adapters accept.
type rawLine struct {
	Timestamp int64  `json:"timestamp"`
	User      string `json:"user"`
	Address   string `json:"address"`
	EventType string `json:"event_type"`
}

// Adapter reads events from some external source and pushes them onto a
// queue until its source is exhausted or ctx is cancelled.
type Adapter interface {
	Run(ctx context.Context, queue *event.Queue) error
}

// lineAdapter is the shared implementation behind StdinAdapter and
// FileTailAdapter: both reduce to "read line-delimited JSON from an
// io.Reader".
type lineAdapter struct {
	source string // for logging only
	open   func() (io.ReadCloser, error)
	follow bool          // keep polling for new lines after EOF (tail -f behavior)
	poll   time.Duration // polling interval when follow is true
}

func (a *lineAdapter) Run(ctx context.Context, queue *event.Queue) error {
	rc, err := a.open()
	if err != nil {
		return err
	}
	defer rc.Close()

	reader := bufio.NewReader(rc)
	poll := a.poll
	if poll <= 0 {
		poll = time.Second
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			a.handleLine(ctx, queue, line)
		}
		if err != nil {
			if err != io.EOF {
				return err
			}
			if !a.follow {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(poll):
			}
		}
	}
}

func (a *lineAdapter) handleLine(ctx context.Context, queue *event.Queue, line string) {
	var raw rawLine
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		log.Warn().Err(err).Str("source", a.source).Msg("ingest: malformed line, skipped")
		return
	}
	ev, err := event.NewLogEvent(raw.Timestamp, raw.User, raw.Address, raw.EventType)
	if err != nil {
		log.Warn().Err(err).Str("source", a.source).Msg("ingest: invalid event, skipped")
		return
	}
	if err := queue.Push(ctx, ev); err != nil {
		log.Debug().Err(err).Str("source", a.source).Msg("ingest: push interrupted")
	}
}

// StdinAdapter reads one JSON event per line from stdin until EOF. Useful
// for piping events in during local testing and demos.
type StdinAdapter struct {
	inner *lineAdapter
}

// NewStdinAdapter builds a StdinAdapter reading from r (normally os.Stdin).
func NewStdinAdapter(r io.Reader) *StdinAdapter {
	return &StdinAdapter{inner: &lineAdapter{
		source: "stdin",
		open:   func() (io.ReadCloser, error) { return io.NopCloser(r), nil },
	}}
}

func (a *StdinAdapter) Run(ctx context.Context, queue *event.Queue) error {
	return a.inner.Run(ctx, queue)
}

// FileTailAdapter follows a line-delimited JSON file, polling for newly
// appended lines once it reaches EOF (a minimal `tail -f`).
type FileTailAdapter struct {
	inner *lineAdapter
}

// NewFileTailAdapter builds a FileTailAdapter over path, polling every
// interval (default 1s) for appended lines. opener is injected so callers
// can pass os.Open without this package importing os for production code
// paths that tests want to fake.
func NewFileTailAdapter(path string, interval time.Duration, opener func(string) (io.ReadCloser, error)) *FileTailAdapter {
	return &FileTailAdapter{inner: &lineAdapter{
		source: path,
		open:   func() (io.ReadCloser, error) { return opener(path) },
		follow: true,
		poll:   interval,
	}}
}

func (a *FileTailAdapter) Run(ctx context.Context, queue *event.Queue) error {
	return a.inner.Run(ctx, queue)
}

var syslogIPPattern = regexp.MustCompile(`\b(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})\b`)

// SyslogAdapter receives raw syslog text over UDP (sshd-style auth log
// lines forwarded by rsyslog/syslog-ng) and parses each datagram into a
// LogEvent with a best-effort regex parser, rather than requiring the
// sender to already speak nightwatch's JSON line format.
type SyslogAdapter struct {
	addr string
}

// NewSyslogAdapter builds a SyslogAdapter bound to addr (e.g. ":514") once
// Run is called.
func NewSyslogAdapter(addr string) *SyslogAdapter {
	return &SyslogAdapter{addr: addr}
}

func (a *SyslogAdapter) Run(ctx context.Context, queue *event.Queue) error {
	udpAddr, err := net.ResolveUDPAddr("udp", a.addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, 1024)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		ev, ok := parseSyslogMessage(string(buf[:n]))
		if !ok {
			log.Warn().Str("source", "syslog").Msg("ingest: unparseable syslog message, skipped")
			continue
		}
		if err := queue.Push(ctx, ev); err != nil {
			log.Debug().Err(err).Str("source", "syslog").Msg("ingest: push interrupted")
		}
	}
}

// parseSyslogMessage extracts an IP address, username, and event type from
// a raw sshd-style log line (e.g. "... Accepted publickey for alice from
// 192.168.1.1 port 51000 ssh2"). Timestamp is assigned at receipt time
// since syslog's own timestamp is not reliably machine-parseable here.
func parseSyslogMessage(msg string) (event.LogEvent, bool) {
	addr := "0.0.0.0"
	if m := syslogIPPattern.FindString(msg); m != "" {
		addr = m
	}

	user := "unknown"
	if idx := strings.Index(msg, "for "); idx >= 0 {
		rest := msg[idx+len("for "):]
		if sp := strings.IndexByte(rest, ' '); sp >= 0 {
			user = rest[:sp]
		}
	}

	var eventType string
	switch {
	case strings.Contains(msg, "Accepted"), strings.Contains(msg, "Successful"):
		eventType = "login-success"
	case strings.Contains(msg, "Failed"), strings.Contains(msg, "Invalid"):
		eventType = "login-failure"
	default:
		return event.LogEvent{}, false
	}

	ev, err := event.NewLogEvent(time.Now().Unix(), user, addr, eventType)
	if err != nil {
		return event.LogEvent{}, false
	}
	return ev, true
}

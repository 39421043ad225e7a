package ingest

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/skywalker-88/nightwatch/internal/event"
)

func TestStdinAdapter_PushesValidLines(t *testing.T) {
	input := `{"timestamp":1,"user":"alice","address":"1.1.1.1","event_type":"login-success"}` + "\n" +
		`not json` + "\n" +
		`{"timestamp":2,"user":"bob","address":"2.2.2.2","event_type":"login-failure"}` + "\n"

	a := NewStdinAdapter(strings.NewReader(input))
	q := event.NewQueue(10)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.Run(ctx, q); err != nil {
		t.Fatal(err)
	}

	if q.Len() != 2 {
		t.Fatalf("want 2 valid events pushed (malformed line skipped), got %d", q.Len())
	}
	first, _ := q.Pop(context.Background())
	if first.User != "alice" {
		t.Fatalf("got %+v", first)
	}
}

func TestFileTailAdapter_PropagatesOpenError(t *testing.T) {
	a := NewFileTailAdapter("missing.log", time.Millisecond, func(string) (io.ReadCloser, error) {
		return nil, errors.New("no such file")
	})
	q := event.NewQueue(1)
	if err := a.Run(context.Background(), q); err == nil {
		t.Fatal("want open error propagated")
	}
}

func TestFileTailAdapter_FollowsAppendedLines(t *testing.T) {
	pr, pw := io.Pipe()
	a := NewFileTailAdapter("tail.log", time.Millisecond, func(string) (io.ReadCloser, error) {
		return pr, nil
	})
	q := event.NewQueue(10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, q) }()

	pw.Write([]byte(`{"timestamp":1,"user":"alice","address":"1.1.1.1","event_type":"login-success"}` + "\n"))

	deadline := time.After(time.Second)
	for q.Len() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for tailed line to be pushed")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	pw.Close()
	<-done
}

func TestParseSyslogMessage_AcceptedLogin(t *testing.T) {
	ev, ok := parseSyslogMessage("Aug 1 00:00:00 host sshd[123]: Accepted publickey for alice from 10.0.0.5 port 51000 ssh2")
	if !ok {
		t.Fatal("want message parsed")
	}
	if ev.User != "alice" || ev.SourceAddrText != "10.0.0.5" || ev.EventType != "login-success" {
		t.Fatalf("got %+v", ev)
	}
}

func TestParseSyslogMessage_FailedLogin(t *testing.T) {
	ev, ok := parseSyslogMessage("Aug 1 00:00:00 host sshd[123]: Failed password for bob from 10.0.0.9 port 51000 ssh2")
	if !ok {
		t.Fatal("want message parsed")
	}
	if ev.User != "bob" || ev.SourceAddrText != "10.0.0.9" || ev.EventType != "login-failure" {
		t.Fatalf("got %+v", ev)
	}
}

func TestParseSyslogMessage_UnrecognizedLineIsRejected(t *testing.T) {
	if _, ok := parseSyslogMessage("Aug 1 00:00:00 host kernel: some unrelated line"); ok {
		t.Fatal("want unrecognized lines rejected")
	}
}

func TestParseSyslogMessage_MissingIPFallsBackToZero(t *testing.T) {
	ev, ok := parseSyslogMessage("Aug 1 00:00:00 host sshd[123]: Accepted publickey for carol from somewhere")
	if !ok {
		t.Fatal("want message parsed despite missing IP")
	}
	if ev.SourceAddrText != "0.0.0.0" {
		t.Fatalf("want fallback address, got %q", ev.SourceAddrText)
	}
}

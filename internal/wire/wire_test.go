package wire

import (
	"bytes"
	"errors"
	"net"
	"strings"
	"testing"
	"time"
)

// flakyConn fails the first `fails` writes after accepting `partial` bytes.
type flakyConn struct {
	net.Conn
	fails   int
	partial int
	buf     bytes.Buffer
	closed  bool
}

func (c *flakyConn) Write(p []byte) (int, error) {
	if c.fails > 0 {
		c.fails--
		n := min(c.partial, len(p))
		c.buf.Write(p[:n])
		return n, errors.New("connection reset")
	}
	return c.buf.Write(p)
}

func (c *flakyConn) CloseWrite() error {
	c.closed = true
	return nil
}

func noSleep(time.Duration) {}

func TestSendRetriesRemainder(t *testing.T) {
	c := &flakyConn{fails: 2, partial: 3}
	s := Sender{Attempts: 5, Delay: time.Millisecond, Sleep: noSleep}
	if err := s.Send(c, []byte("hello world")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := c.buf.String(); got != "hello world" {
		t.Errorf("peer received %q, want %q", got, "hello world")
	}
	if !c.closed {
		t.Error("write side was not closed")
	}
}

func TestSendGivesUp(t *testing.T) {
	c := &flakyConn{fails: 10}
	var sleeps int
	s := Sender{Attempts: 5, Delay: time.Millisecond, Sleep: func(time.Duration) { sleeps++ }}
	err := s.Send(c, []byte("x"))
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if !strings.Contains(err.Error(), "5 attempts") {
		t.Errorf("error = %v", err)
	}
	if sleeps != 4 {
		t.Errorf("slept %d times, want 4", sleeps)
	}
	if c.closed {
		t.Error("write side closed despite failed writes")
	}
}

func TestSendOverTCPHalfCloses(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	got := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		b, _ := ReadMessage(conn, 0)
		got <- b
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if err := Send(conn, []byte(`["a"]`)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case b := <-got:
		if string(b) != `["a"]` {
			t.Errorf("received %q", b)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("receiver never saw EOF")
	}
}

func TestReadMessageLimit(t *testing.T) {
	if _, err := ReadMessage(strings.NewReader("12345"), 5); err != nil {
		t.Errorf("message at limit rejected: %v", err)
	}
	_, err := ReadMessage(strings.NewReader("123456"), 5)
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("err = %v, want ErrTooLarge", err)
	}
}

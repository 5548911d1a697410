package file

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeRedis answers PING over RESP and can drop every connection on demand.
type fakeRedis struct {
	ln    net.Listener
	mu    sync.Mutex
	down  bool
	conns map[net.Conn]struct{}
}

func startFakeRedis(t *testing.T) *fakeRedis {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &fakeRedis{ln: ln, conns: make(map[net.Conn]struct{})}
	go s.serve()

	t.Cleanup(func() {
		ln.Close()
		s.setDown(true)
	})

	return s
}

func (s *fakeRedis) addr() string {
	return s.ln.Addr().String()
}

func (s *fakeRedis) serve() {
	for {
		c, err := s.ln.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		if s.down {
			c.Close()
		} else {
			s.conns[c] = struct{}{}
			go s.handle(c)
		}
		s.mu.Unlock()
	}
}

func (s *fakeRedis) setDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.down = down
	if !down {
		return
	}

	for c := range s.conns {
		c.Close()
	}
	clear(s.conns)
}

func (s *fakeRedis) handle(c net.Conn) {
	defer c.Close()

	r := bufio.NewReader(c)
	for {
		args, err := readCommand(r)
		if err != nil {
			return
		}

		reply := "+OK\r\n"
		switch strings.ToUpper(args[0]) {
		case "PING":
			reply = "+PONG\r\n"
		case "HELLO":
			reply = "-ERR unknown command 'HELLO'\r\n"
		}

		if _, err := io.WriteString(c, reply); err != nil {
			return
		}
	}
}

func readCommand(r *bufio.Reader) ([]string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}

	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "*") {
		if fields := strings.Fields(line); len(fields) > 0 {
			return fields, nil
		}

		return nil, fmt.Errorf("empty command")
	}

	n, err := strconv.Atoi(line[1:])
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("bad array header %q", line)
	}

	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		hdr, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}

		size, err := strconv.Atoi(strings.TrimSpace(hdr)[1:])
		if err != nil {
			return nil, fmt.Errorf("bad bulk header %q", hdr)
		}

		buf := make([]byte, size+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		args = append(args, string(buf[:size]))
	}

	return args, nil
}

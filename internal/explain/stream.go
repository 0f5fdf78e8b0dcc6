package explain

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// State is the lifecycle of a Stream.
type State int

const (
	Idle State = iota
	Streaming
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Streaming:
		return "streaming"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrClosed is reported by Err when the consumer closed the stream before it
// finished.
var ErrClosed = eris.New("explanation stream closed")

const (
	dataPrefix = "data: "
	doneMarker = "[DONE]"
	maxLine    = 1 << 20
)

type streamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Stream is a pull iterator over explanation chunks:
//
//	for s.Next() {
//		fmt.Print(s.Chunk())
//	}
//	if err := s.Err(); err != nil { ... }
//
// A Stream is not safe for concurrent use, except that Close may be called
// from another goroutine to abort consumption.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	words   wordBuffer
	queue   []string
	chunk   string
	log     *zap.Logger

	mu     sync.Mutex
	state  State
	err    error
	closed bool
}

func newStream(body io.ReadCloser, log *zap.Logger) *Stream {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &Stream{body: body, scanner: sc, log: log}
}

// Next advances to the next chunk. It returns false once the stream is
// finished, failed or closed; check Err afterwards.
func (s *Stream) Next() bool {
	for {
		if s.isClosed() {
			s.chunk = ""
			return false
		}
		if len(s.queue) > 0 {
			s.chunk, s.queue = s.queue[0], s.queue[1:]
			return true
		}
		s.chunk = ""

		switch s.State() {
		case Done, Failed:
			return false
		case Idle:
			s.setState(Streaming, nil)
		}

		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				s.finish(Failed, eris.Wrap(err, "reading explanation stream"))
			} else {
				s.finish(Done, nil)
			}
			continue
		}
		s.handleLine(s.scanner.Text())
	}
}

func (s *Stream) handleLine(line string) {
	payload, ok := strings.CutPrefix(line, dataPrefix)
	if !ok {
		return
	}
	if strings.TrimSpace(payload) == doneMarker {
		s.finish(Done, nil)
		return
	}

	var ev streamEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		s.log.Debug("skipping undecodable stream event", zap.String("payload", payload), zap.Error(err))
		return
	}
	if len(ev.Choices) == 0 || ev.Choices[0].Delta.Content == "" {
		return
	}
	s.queue = append(s.queue, s.words.push(ev.Choices[0].Delta.Content)...)
}

// finish flushes the partial word and releases the connection.
func (s *Stream) finish(state State, err error) {
	if rest := s.words.flush(); rest != "" {
		s.queue = append(s.queue, rest)
	}
	if !s.setState(state, err) {
		return
	}
	_ = s.body.Close()
	if err != nil {
		s.log.Error("explanation stream failed", zap.Error(err))
	}
}

// setState moves to state unless the stream already ended. It reports whether
// the transition happened.
func (s *Stream) setState(state State, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Done || s.state == Failed {
		return false
	}
	s.state = state
	s.err = err
	return true
}

// Chunk returns the current chunk.
func (s *Stream) Chunk() string { return s.chunk }

// Err returns the error that ended the stream, if any.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// State returns the current lifecycle state.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Stream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops consumption and closes the connection. Closing a finished
// stream only discards undelivered chunks.
func (s *Stream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	if !s.setState(Failed, ErrClosed) {
		return nil
	}
	return s.body.Close()
}

// WriteTo copies every remaining chunk to w.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	return s.copy(w, nil)
}

// CopyFlush is WriteTo with a flush callback after every chunk, for
// chunked HTTP responses.
func (s *Stream) CopyFlush(w io.Writer, flush func()) (int64, error) {
	return s.copy(w, flush)
}

func (s *Stream) copy(w io.Writer, flush func()) (int64, error) {
	var total int64
	for s.Next() {
		n, err := io.WriteString(w, s.Chunk())
		total += int64(n)
		if err != nil {
			_ = s.Close()
			return total, eris.Wrap(err, "writing explanation")
		}
		if flush != nil {
			flush()
		}
	}
	return total, s.Err()
}

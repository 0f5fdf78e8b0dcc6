package explain

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"testing/iotest"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dshills/juris/internal/prompts"
	"github.com/dshills/juris/internal/providers"
)

type trackedBody struct {
	io.Reader
	closed atomic.Bool
}

func (b *trackedBody) Close() error {
	b.closed.Store(true)
	return nil
}

type fakeOpener struct {
	body         *trackedBody
	err          error
	systemPrompt string
	userPrompt   string
}

func (f *fakeOpener) OpenStream(_ context.Context, systemPrompt, userPrompt string) (io.ReadCloser, error) {
	f.systemPrompt, f.userPrompt = systemPrompt, userPrompt
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

func sse(fragments ...string) string {
	var b strings.Builder
	for _, f := range fragments {
		b.WriteString(`data: {"choices":[{"delta":{"content":`)
		b.WriteString(quote(f))
		b.WriteString("}}]}\n\n")
	}
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}

func collect(t *testing.T, s *Stream) []string {
	t.Helper()
	var chunks []string
	for s.Next() {
		chunks = append(chunks, s.Chunk())
	}
	return chunks
}

func newTestStream(r io.Reader) (*Stream, *trackedBody) {
	body := &trackedBody{Reader: r}
	return newStream(body, zap.NewNop()), body
}

func TestStream_WordAlignedChunks(t *testing.T) {
	s, body := newTestStream(strings.NewReader(sse("Hel", "lo wor", "ld")))

	chunks := collect(t, s)
	assert.Equal(t, []string{"Hello ", "world"}, chunks)
	assert.Equal(t, Done, s.State())
	assert.NoError(t, s.Err())
	assert.True(t, body.closed.Load())
}

func TestStream_NormalizesWhitespace(t *testing.T) {
	s, _ := newTestStream(strings.NewReader(sse(" The  Supplier\n", "must pay", " within 30 days.")))

	chunks := collect(t, s)
	assert.Equal(t, []string{"The ", "Supplier ", "must ", "pay ", "within ", "30 ", "days."}, chunks)
	assert.Equal(t, "The Supplier must pay within 30 days.", strings.Join(chunks, ""))
}

func TestStream_SkipsNonDataAndMalformedEvents(t *testing.T) {
	raw := ": keep-alive\n" +
		"event: message\n" +
		`data: {"choices":[{"delta":{"role":"assistant"}}]}` + "\n" +
		"data: {not json\n" +
		`data: {"choices":[]}` + "\n" +
		`data: {"choices":[{"delta":{"content":"Termination "}}]}` + "\n" +
		`data: {"choices":[{"delta":{"content":"requires notice."}}]}` + "\n" +
		"data: [DONE]\n" +
		`data: {"choices":[{"delta":{"content":"ignored"}}]}` + "\n"
	s, _ := newTestStream(strings.NewReader(raw))

	chunks := collect(t, s)
	assert.Equal(t, "Termination requires notice.", strings.Join(chunks, ""))
	assert.Equal(t, Done, s.State())
}

func TestStream_EndsWithoutDoneMarker(t *testing.T) {
	raw := `data: {"choices":[{"delta":{"content":"Governed by English law"}}]}` + "\n"
	s, _ := newTestStream(strings.NewReader(raw))

	chunks := collect(t, s)
	assert.Equal(t, []string{"Governed ", "by ", "English ", "law"}, chunks)
	assert.Equal(t, Done, s.State())
	assert.NoError(t, s.Err())
}

func TestStream_ReadErrorFails(t *testing.T) {
	r := io.MultiReader(
		strings.NewReader(`data: {"choices":[{"delta":{"content":"Partial expla"}}]}`+"\n"),
		iotest.ErrReader(errors.New("connection reset")),
	)
	s, body := newTestStream(r)

	chunks := collect(t, s)
	assert.Equal(t, []string{"Partial ", "expla"}, chunks)
	assert.Equal(t, Failed, s.State())
	require.Error(t, s.Err())
	assert.Contains(t, s.Err().Error(), "connection reset")
	assert.True(t, body.closed.Load())
}

func TestStream_Close(t *testing.T) {
	s, body := newTestStream(strings.NewReader(sse("First words ", "then more text")))

	require.True(t, s.Next())
	assert.Equal(t, "First ", s.Chunk())
	assert.Equal(t, Streaming, s.State())

	require.NoError(t, s.Close())
	assert.False(t, s.Next())
	assert.Equal(t, Failed, s.State())
	assert.True(t, eris.Is(s.Err(), ErrClosed))
	assert.True(t, body.closed.Load())
}

func TestStream_CloseAfterDone(t *testing.T) {
	s, _ := newTestStream(strings.NewReader(sse("done")))
	collect(t, s)
	require.NoError(t, s.Close())
	assert.Equal(t, Done, s.State())
	assert.NoError(t, s.Err())
}

func TestStream_CopyFlush(t *testing.T) {
	s, _ := newTestStream(strings.NewReader(sse("Each party ", "bears its own costs.")))

	var out strings.Builder
	flushes := 0
	n, err := s.CopyFlush(&out, func() { flushes++ })
	require.NoError(t, err)
	assert.Equal(t, "Each party bears its own costs.", out.String())
	assert.Equal(t, int64(out.Len()), n)
	assert.Equal(t, 6, flushes)
}

func TestStream_InitialState(t *testing.T) {
	s, _ := newTestStream(strings.NewReader(""))
	assert.Equal(t, Idle, s.State())
	assert.False(t, s.Next())
	assert.Equal(t, Done, s.State())
}

func TestWordBuffer(t *testing.T) {
	var w wordBuffer
	assert.Empty(t, w.push("Hel"))
	assert.Equal(t, []string{"Hello "}, w.push("lo wor"))
	assert.Empty(t, w.push("ld"))
	assert.Equal(t, "world", w.flush())
	assert.Equal(t, "", w.flush())

	assert.Empty(t, w.push("   "))
	assert.Equal(t, []string{"one ", "two "}, w.push("one two "))
	assert.Equal(t, "", w.flush())
}

func TestExplain(t *testing.T) {
	opener := &fakeOpener{body: &trackedBody{Reader: strings.NewReader(sse("It means ", "what it says."))}}
	e := New(opener, nil, zap.NewNop())

	s, err := e.Explain(context.Background(), "The Recipient shall not disclose.", prompts.NonDisclosureAgreement)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, prompts.Default().Explanation(prompts.NonDisclosureAgreement), opener.systemPrompt)
	assert.Equal(t,
		"Please provide a straightforward explanation of the following clause:\n\nClause: The Recipient shall not disclose.",
		opener.userPrompt)
	assert.Equal(t, "It means what it says.", strings.Join(collect(t, s), ""))
}

func TestExplain_OpenFailure(t *testing.T) {
	opener := &fakeOpener{err: &providers.StatusError{Code: 429, Body: "rate limited"}}
	e := New(opener, nil, zap.NewNop())

	s, err := e.Explain(context.Background(), "Some clause.", prompts.Other)
	require.Error(t, err)
	assert.Nil(t, s)
	assert.Contains(t, err.Error(), "status 429")
}

func TestExplain_EmptyClause(t *testing.T) {
	e := New(&fakeOpener{}, nil, zap.NewNop())
	_, err := e.Explain(context.Background(), "  \n", prompts.Other)
	assert.True(t, eris.Is(err, ErrEmptyClause))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "streaming", Streaming.String())
	assert.Equal(t, "done", Done.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "unknown", State(9).String())
}

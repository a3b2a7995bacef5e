package template

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/sbs/errs"
)

func streamTemplate(t *testing.T, opts ...Option) *Template {
	t.Helper()

	return mustNew(t, Object(
		Field("id", U32),
		Field("payload", Bytes(U32)),
		Field("tags", Array(String(U8), U16)),
	), opts...)
}

func streamValue() map[string]any {
	return map[string]any{
		"id":      7,
		"payload": bytes.Repeat([]byte{0xAB}, 5000),
		"tags":    []any{"a", "bb", "ccc"},
	}
}

func TestTemplate_EncodeTo(t *testing.T) {
	tpl := streamTemplate(t, WithChecksum())
	want, err := tpl.Encode(streamValue())
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := tpl.EncodeTo(&buf, streamValue())
	require.NoError(t, err)
	require.Equal(t, int64(len(want)), n)
	require.Equal(t, want, buf.Bytes())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestTemplate_EncodeToWriterError(t *testing.T) {
	_, err := streamTemplate(t).EncodeTo(failingWriter{}, streamValue())
	require.ErrorContains(t, err, "disk full")
}

func TestTemplate_DecodeFrom(t *testing.T) {
	tpl := streamTemplate(t, WithChecksum())
	data, err := tpl.Encode(streamValue())
	require.NoError(t, err)

	out, err := tpl.DecodeFrom(&slowReader{data: data, step: 7})
	require.NoError(t, err)

	m := out.(map[string]any)
	require.Equal(t, uint32(7), m["id"])
	require.Equal(t, streamValue()["payload"], m["payload"])
	require.Equal(t, []any{"a", "bb", "ccc"}, m["tags"])
}

type slowReader struct {
	data []byte
	step int
}

func (r *slowReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p[:min(len(p), r.step)], r.data)
	r.data = r.data[n:]

	return n, nil
}

func TestTemplate_Chunks(t *testing.T) {
	tpl := streamTemplate(t, WithChecksum())
	want, err := tpl.Encode(streamValue())
	require.NoError(t, err)

	src, err := tpl.Chunks(streamValue())
	require.NoError(t, err)
	defer src.Close()

	var chunks [][]byte
	for {
		chunk, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		chunks = append(chunks, chunk)
	}
	require.Greater(t, len(chunks), 1, "the payload travels as its own chunk")
	require.Equal(t, want, bytes.Join(chunks, nil))

	out, err := tpl.DecodeChunks(chunks)
	require.NoError(t, err)
	require.Equal(t, uint32(7), out.(map[string]any)["id"])

	require.NoError(t, src.Close())
	_, err = src.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestChunkSource_Read(t *testing.T) {
	tpl := streamTemplate(t)
	want, err := tpl.Encode(streamValue())
	require.NoError(t, err)

	src, err := tpl.Chunks(streamValue())
	require.NoError(t, err)
	defer src.Close()

	got, err := io.ReadAll(src)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestTemplate_ChunksEncodeError(t *testing.T) {
	_, err := streamTemplate(t).Chunks(map[string]any{"id": -1})
	require.ErrorIs(t, err, errs.ErrOverflow)
}

func TestSink(t *testing.T) {
	tpl := streamTemplate(t)
	data, err := tpl.Encode(streamValue())
	require.NoError(t, err)

	sink := tpl.NewSink()
	go func() {
		for len(data) > 0 {
			n := min(len(data), 100)
			_, _ = sink.Write(data[:n])
			data = data[n:]
		}
		_ = sink.Close()
	}()

	<-sink.Done()
	out, err := sink.Result()
	require.NoError(t, err)
	require.Equal(t, []any{"a", "bb", "ccc"}, out.(map[string]any)["tags"])

	_, err = sink.Write([]byte{1})
	require.Error(t, err)
}

func TestSink_Abort(t *testing.T) {
	var logs strings.Builder
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	tpl := streamTemplate(t, WithLogger(logger))

	sink := tpl.NewSink()
	_, err := sink.Write([]byte{1, 2, 3})
	require.NoError(t, err)

	reason := errors.New("connection reset")
	sink.Abort(reason)
	sink.Abort(nil)

	out, err := sink.Result()
	require.Nil(t, out)
	require.ErrorIs(t, err, errs.ErrAborted)
	require.ErrorIs(t, err, reason)
	require.Contains(t, logs.String(), "sink aborted")

	require.ErrorIs(t, sink.Close(), errs.ErrAborted)
}

func TestSink_Truncated(t *testing.T) {
	tpl := streamTemplate(t)
	data, err := tpl.Encode(streamValue())
	require.NoError(t, err)

	sink := tpl.NewSink()
	_, err = sink.Write(data[:len(data)/2])
	require.NoError(t, err)
	require.ErrorIs(t, sink.Close(), errs.ErrFormatInvalid)

	_, err = sink.Result()
	require.ErrorIs(t, err, errs.ErrFormatInvalid)
}

func TestTemplate_LogsFailures(t *testing.T) {
	var logs strings.Builder
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	tpl := mustNew(t, Object(Field("a", U8)), WithLogger(logger))

	_, err := tpl.Encode(map[string]any{"a": 256})
	require.Error(t, err)
	require.Contains(t, logs.String(), "writing failed")
	require.Contains(t, logs.String(), "path=a")
}

package transport

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNDJSONSourceReadsDocuments(t *testing.T) {
	input := strings.Join([]string{
		`{"name": "start", "doc": {"uid": "abc", "scan_id": 7}}`,
		``,
		`{"name": "event", "doc": {"data": {"det": 1.5}}}`,
		`not json at all`,
		`{"name": "weird_doc", "doc": {}}`,
		`{"name": "stop", "doc": {"exit_status": "success"}}`,
	}, "\n")

	src := NewNDJSONSource(strings.NewReader(input))
	ctx := context.Background()

	doc, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, NameStart, doc.Name)
	assert.Equal(t, "abc", doc.Doc["uid"])

	doc, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, NameEvent, doc.Name)

	// The malformed and unknown lines were skipped.
	doc, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, NameStop, doc.Name)

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestNDJSONSourceEmptyStream(t *testing.T) {
	src := NewNDJSONSource(strings.NewReader(""))
	_, err := src.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestDispatcherFansOut(t *testing.T) {
	input := strings.Join([]string{
		`{"name": "start", "doc": {"uid": "run-1"}}`,
		`{"name": "stop", "doc": {}}`,
	}, "\n")

	d := NewDispatcher()
	assert.NotEmpty(t, d.Session())

	a := make(chan Document, 4)
	b := make(chan Document, 4)
	d.Subscribe(a)
	d.Subscribe(b)

	err := d.Run(context.Background(), NewNDJSONSource(strings.NewReader(input)))
	require.NoError(t, err)

	for _, ch := range []chan Document{a, b} {
		doc, ok := <-ch
		require.True(t, ok)
		assert.Equal(t, NameStart, doc.Name)
		doc, ok = <-ch
		require.True(t, ok)
		assert.Equal(t, NameStop, doc.Name)
		_, ok = <-ch
		assert.False(t, ok, "channel closes when the source is exhausted")
	}
}

func TestDispatcherStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDispatcher()
	ch := make(chan Document)
	d.Subscribe(ch)

	pr, pw := io.Pipe()
	defer pw.Close()
	go func() {
		pw.Write([]byte(`{"name": "start", "doc": {}}` + "\n"))
	}()

	err := d.Run(ctx, NewNDJSONSource(pr))
	require.NoError(t, err)
	_, ok := <-ch
	assert.False(t, ok)
}

package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobhound/internal/crawler"
)

func TestMultiFansOut(t *testing.T) {
	t.Parallel()

	a := &fakeSink{}
	b := &fakeSink{}
	m := NewMulti(a, b)

	rec := crawler.Record{Title: "Go Engineer", SourceURL: "https://example.com/jdp/1"}
	require.NoError(t, m.Save(context.Background(), rec))

	require.Len(t, a.records, 1)
	require.Len(t, b.records, 1)
	assert.Equal(t, rec, a.records[0])
}

func TestMultiContinuesPastFailures(t *testing.T) {
	t.Parallel()

	failing := &fakeSink{err: errors.New("disk full")}
	healthy := &fakeSink{}
	m := NewMulti(failing, healthy)

	err := m.Save(context.Background(), crawler.Record{SourceURL: "https://example.com/jdp/1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Len(t, healthy.records, 1, "a failing sink must not starve the others")
}

func TestMultiSkipsNilSinks(t *testing.T) {
	t.Parallel()

	m := NewMulti(nil, &fakeSink{}, nil)
	assert.Equal(t, 1, m.Len())
}

func TestMultiClose(t *testing.T) {
	t.Parallel()

	plain := &fakeSink{}
	closable := &closableSink{}
	failing := &closableSink{closeErr: errors.New("flush failed")}
	m := NewMulti(plain, closable, failing)

	err := m.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flush failed")
	assert.True(t, closable.closed)
}

type fakeSink struct {
	records []crawler.Record
	err     error
}

func (f *fakeSink) Save(_ context.Context, rec crawler.Record) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

type closableSink struct {
	fakeSink
	closed   bool
	closeErr error
}

func (c *closableSink) Close() error {
	c.closed = true
	return c.closeErr
}

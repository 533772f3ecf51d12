package session_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opswatch/updateworker/internal/testsupport"
	"github.com/opswatch/updateworker/session"
)

func TestNegotiateRecordsAcknowledgedCapabilities(t *testing.T) {
	transport := testsupport.NewFakeTransport("multigraph dirtyconfig spool\n.\n")
	s := session.New(transport, time.Second)

	caps, err := s.Negotiate(context.Background(), []string{"multigraph", "dirtyconfig", "spool"})
	require.NoError(t, err)
	assert.True(t, caps["spool"])
	assert.True(t, s.HasCapability("dirtyconfig"))
	assert.False(t, s.HasCapability("unknown"))

	require.Len(t, transport.Sent, 1)
	assert.Equal(t, "cap multigraph dirtyconfig spool\n", transport.Sent[0])
}

func TestListPluginsReturnsAllEntries(t *testing.T) {
	transport := testsupport.NewFakeTransport("load\ncpu\ndisk\n.\n")
	s := session.New(transport, time.Second)

	plugins, err := s.ListPlugins(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"load", "cpu", "disk"}, plugins)
}

func TestRequestConfigReturnsRawLines(t *testing.T) {
	transport := testsupport.NewFakeTransport("graph_title System Load\nload.label load\n.\n")
	s := session.New(transport, time.Second)

	lines, err := s.RequestConfig(context.Background(), "load")
	require.NoError(t, err)
	assert.Equal(t, []string{"graph_title System Load", "load.label load"}, lines)
	assert.Equal(t, "config load\n", transport.Sent[0])
}

func TestSpoolfetchStreamsLinesWithoutBuffering(t *testing.T) {
	transport := testsupport.NewFakeTransport("load.value 1100:1\ncpu.value 1200:2\n1300\n.\n")
	s := session.New(transport, time.Second)

	var seen []string
	cursor, err := s.Spoolfetch(context.Background(), "1000", func(line string) error {
		seen = append(seen, line)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"load.value 1100:1", "cpu.value 1200:2"}, seen)
	assert.Equal(t, "1300", cursor)
	assert.Equal(t, "spoolfetch 1000\n", transport.Sent[0])
}

func TestSpoolfetchWithNoDataReturnsEmptyCursor(t *testing.T) {
	transport := testsupport.NewFakeTransport(".\n")
	s := session.New(transport, time.Second)

	cursor, err := s.Spoolfetch(context.Background(), "1000", func(line string) error {
		t.Fatalf("handler should not be called, got %q", line)
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, cursor)
}

func TestUnterminatedResponseSurfacesTransportFailure(t *testing.T) {
	transport := testsupport.NewFakeTransport("") // never sends a terminator
	s := session.New(transport, 10*time.Millisecond)

	_, err := s.ListPlugins(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "timed out") || strings.Contains(err.Error(), "closed"))
}

func TestCloseSendsQuitAndClosesTransport(t *testing.T) {
	transport := testsupport.NewFakeTransport("")
	s := session.New(transport, time.Second)

	s.Close(context.Background())
	require.NotEmpty(t, transport.Sent)
	assert.Equal(t, "quit\n", transport.Sent[0])
}

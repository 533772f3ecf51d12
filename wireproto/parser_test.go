package wireproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opswatch/updateworker/timespec"
)

func TestParseConfigLineServiceAttr(t *testing.T) {
	p := NewParser("load", nil)
	ev, err := p.ParseConfigLine("graph_title System Load")
	require.NoError(t, err)
	assert.Equal(t, ServiceAttr{Service: "load", Key: "graph_title", Value: "System Load"}, ev)
}

func TestParseConfigLineFieldAttr(t *testing.T) {
	p := NewParser("load", nil)
	ev, err := p.ParseConfigLine("load.type GAUGE")
	require.NoError(t, err)
	assert.Equal(t, FieldAttr{Service: "load", Field: "load", Key: "type", Value: "GAUGE"}, ev)
}

func TestParseConfigLineDirtyConfigDivertsToSample(t *testing.T) {
	old := timespec.Now
	defer func() { timespec.Now = old }()
	timespec.Now = func() int64 { return 12345 }

	p := NewParser("cpu", nil)
	ev, err := p.ParseConfigLine("cpu.value 123456")
	require.NoError(t, err)
	assert.Equal(t, Sample{Service: "cpu", Field: "cpu", When: 12345, Value: "123456"}, ev)
}

func TestParseConfigLineMultigraphSwitch(t *testing.T) {
	p := NewParser("disk", nil)
	ev, err := p.ParseConfigLine("multigraph disk.read")
	require.NoError(t, err)
	assert.Equal(t, MultigraphSwitch{Name: "disk.read"}, ev)
	assert.Equal(t, "disk.read", p.CurrentService())

	ev, err = p.ParseConfigLine("read.label r")
	require.NoError(t, err)
	assert.Equal(t, FieldAttr{Service: "disk.read", Field: "read", Key: "label", Value: "r"}, ev)
}

func TestParseConfigLineTerminator(t *testing.T) {
	p := NewParser("load", nil)
	ev, err := p.ParseConfigLine(".")
	require.NoError(t, err)
	assert.Nil(t, ev)
}

func TestParseConfigLineUnparseable(t *testing.T) {
	p := NewParser("load", nil)
	_, err := p.ParseConfigLine("!! not a valid line at all")
	assert.Error(t, err)
}

func TestParseFetchLineBareNow(t *testing.T) {
	old := timespec.Now
	defer func() { timespec.Now = old }()
	timespec.Now = func() int64 { return 5000 }

	p := NewParser("load", nil)
	ev, err := p.ParseFetchLine("load.value 0.42")
	require.NoError(t, err)
	assert.Equal(t, Sample{Service: "load", Field: "load", When: 5000, Value: "0.42"}, ev)
}

func TestParseFetchLineExplicitEpoch(t *testing.T) {
	p := NewParser("load", nil)
	ev, err := p.ParseFetchLine("load.value 1700000000:0.42")
	require.NoError(t, err)
	assert.Equal(t, Sample{Service: "load", Field: "load", When: 1700000000, Value: "0.42"}, ev)
}

func TestParseFetchLineAlignedRounding(t *testing.T) {
	rates := func(service string) (int64, bool) { return 300, true }
	p := NewParser("load", rates)
	ev, err := p.ParseFetchLine("load.value 1700000123:0.42")
	require.NoError(t, err)
	sample := ev.(Sample)
	assert.Equal(t, int64(1700000123-1700000123%300), sample.When)
}

func TestParseFetchLineUnknownValue(t *testing.T) {
	p := NewParser("load", nil)
	ev, err := p.ParseFetchLine("load.value U")
	require.NoError(t, err)
	assert.Equal(t, "U", ev.(Sample).Value)
}

func TestParseConfigResponseDivertsDirtySamples(t *testing.T) {
	old := timespec.Now
	defer func() { timespec.Now = old }()
	timespec.Now = func() int64 { return 777 }

	p := NewParser("cpu", nil)
	events, samples, lastTS, err := p.ParseConfigResponse([]string{
		"cpu.label CPU",
		"cpu.type DERIVE",
		"cpu.value 123456",
		".",
	})
	require.NoError(t, err)
	assert.Len(t, events, 2)
	require.Len(t, samples, 1)
	assert.Equal(t, int64(777), lastTS)
	assert.Equal(t, "123456", samples[0].Value)
}

func TestParseConfigResponseCleanConfigHasNoSamples(t *testing.T) {
	p := NewParser("load", nil)
	_, samples, lastTS, err := p.ParseConfigResponse([]string{
		"graph_title System Load",
		"load.label load",
		"load.type GAUGE",
		".",
	})
	require.NoError(t, err)
	assert.Empty(t, samples)
	assert.Equal(t, int64(0), lastTS)
}

func TestParseFetchResponseMultigraph(t *testing.T) {
	p := NewParser("disk", nil)
	samples, err := p.ParseFetchResponse([]string{
		"multigraph disk.read",
		"read.value 10",
		"multigraph disk.write",
		"write.value 20",
		".",
	})
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, "disk.read", samples[0].Service)
	assert.Equal(t, "disk.write", samples[1].Service)
}

package wireproto

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/opswatch/updateworker/errors"
	"github.com/opswatch/updateworker/timespec"
)

// RateLookup resolves a service's update rate and alignment flag, used
// to round fetch timestamps down to the nearest multiple of the rate
// when the rate is aligned (§4.1, §4.5).
type RateLookup func(service string) (seconds int64, aligned bool)

// Parser tracks the "current service" context across a stream of
// lines, switched by multigraph declarations. One Parser should be
// used per session response (config, fetch, or spoolfetch stream).
type Parser struct {
	currentService string
	rates          RateLookup
}

// NewParser starts a parser in the context of baseService — the
// plugin name the config/fetch request was issued for. rates may be
// nil if fetch lines are never parsed through this instance.
func NewParser(baseService string, rates RateLookup) *Parser {
	return &Parser{currentService: baseService, rates: rates}
}

var lineTokenPattern = regexp.MustCompile(`^([A-Za-z0-9_]+)(?:\.([A-Za-z0-9_]+))?\s+(.+)$`)
var multigraphPattern = regexp.MustCompile(`^multigraph\s+(\S+)$`)

// ParseConfigLine applies the config grammar to one line:
// "head[.attr] value". A dotted attr of exactly "value" is a
// dirty-config inline sample and is diverted to a Sample, not a
// FieldAttr — the fused pass described in the design notes. Returns
// nil, nil for a line that terminates the response (the lone ".").
func (p *Parser) ParseConfigLine(line string) (Event, error) {
	if line == "." {
		return nil, nil
	}
	if m := multigraphPattern.FindStringSubmatch(line); m != nil {
		p.currentService = m[1]
		return MultigraphSwitch{Name: m[1]}, nil
	}

	m := lineTokenPattern.FindStringSubmatch(line)
	if m == nil {
		return nil, errors.WithKind(errors.Newf("unparseable config line: %q", line), errors.ProtocolViolation)
	}
	head, attr, value := m[1], m[2], m[3]

	if attr == "" {
		return ServiceAttr{Service: p.currentService, Key: head, Value: value}, nil
	}
	if attr == "value" {
		when := timespec.Now()
		if p.rates != nil {
			if rate, aligned := p.rates(p.currentService); aligned {
				when = when - (when % rate)
			}
		}
		return Sample{Service: p.currentService, Field: head, When: when, Value: value}, nil
	}
	return FieldAttr{Service: p.currentService, Field: head, Key: attr, Value: value}, nil
}

var fetchValuePattern = regexp.MustCompile(`^(?:(\d+):)?(.+)$`)

// ParseFetchLine applies the fetch grammar to one line:
// "field[.arg] [when:]value". A bare token has no explicit epoch and
// is dated "now"; an aligned update rate rounds the result down to
// the nearest multiple of the rate.
func (p *Parser) ParseFetchLine(line string) (Event, error) {
	if line == "." {
		return nil, nil
	}
	if m := multigraphPattern.FindStringSubmatch(line); m != nil {
		p.currentService = m[1]
		return MultigraphSwitch{Name: m[1]}, nil
	}

	m := lineTokenPattern.FindStringSubmatch(line)
	if m == nil {
		return nil, errors.WithKind(errors.Newf("unparseable fetch line: %q", line), errors.ProtocolViolation)
	}
	field, token := m[1], m[3]

	tm := fetchValuePattern.FindStringSubmatch(token)
	if tm == nil {
		return nil, errors.WithKind(errors.Newf("unparseable fetch token: %q", token), errors.ProtocolViolation)
	}

	var when int64
	aligned := false
	var rate int64
	if p.rates != nil {
		rate, aligned = p.rates(p.currentService)
	}

	if tm[1] != "" {
		when, _ = strconv.ParseInt(tm[1], 10, 64)
	} else {
		when = timespec.Now()
	}
	if aligned && rate > 0 {
		when = when - (when % rate)
	}

	return Sample{Service: p.currentService, Field: field, When: when, Value: strings.TrimSpace(tm[2])}, nil
}

// CurrentService returns the service context the parser would apply
// to the next line, reflecting any multigraph switches seen so far.
func (p *Parser) CurrentService() string {
	return p.currentService
}

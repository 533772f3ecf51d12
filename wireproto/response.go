package wireproto

// ParseConfigResponse feeds an entire config response (lines already
// trimmed of comments/blanks by the caller, terminator "." excluded or
// included — both are tolerated) through the config grammar. It
// returns the config-shaped events (ServiceAttr, FieldAttr,
// MultigraphSwitch) and any dirty-config samples diverted out of
// ".value" lines, plus the timestamp of the last diverted sample — a
// non-zero value here means the caller must skip the subsequent fetch
// round-trip for this plugin.
func (p *Parser) ParseConfigResponse(lines []string) (events []Event, samples []Sample, lastTimestamp int64, err error) {
	for _, line := range lines {
		if line == "." {
			continue
		}
		ev, perr := p.ParseConfigLine(line)
		if perr != nil {
			return events, samples, lastTimestamp, perr
		}
		if ev == nil {
			continue
		}
		if s, ok := ev.(Sample); ok {
			samples = append(samples, s)
			lastTimestamp = s.When
			continue
		}
		events = append(events, ev)
	}
	return events, samples, lastTimestamp, nil
}

// ParseFetchResponse feeds an entire fetch (or spoolfetch service
// block) response through the fetch grammar, returning the samples
// produced. Multigraph switches change the parser's current service
// and are not returned.
func (p *Parser) ParseFetchResponse(lines []string) (samples []Sample, err error) {
	for _, line := range lines {
		if line == "." {
			continue
		}
		ev, perr := p.ParseFetchLine(line)
		if perr != nil {
			return samples, perr
		}
		if ev == nil {
			continue
		}
		if s, ok := ev.(Sample); ok {
			samples = append(samples, s)
		}
	}
	return samples, nil
}

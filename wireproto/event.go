// Package wireproto parses the agent's line-oriented wire protocol
// responses to config, fetch, and spoolfetch requests into a lazy
// sequence of tagged events. One parser is exposed; dirty-config
// samples are diverted into the same Sample type that fetch produces,
// so callers consume both through a single downstream path.
package wireproto

// Event is implemented by every parsed unit. Handlers type-switch on
// the concrete type rather than inspecting a discriminant field.
type Event interface {
	isEvent()
}

// ServiceAttr is a service-wide attribute, e.g. "graph_title".
type ServiceAttr struct {
	Service string
	Key     string
	Value   string
}

func (ServiceAttr) isEvent() {}

// FieldAttr is a per-field declaration attribute, e.g. "label", "type",
// "min", "max", "oldname", "update_rate".
type FieldAttr struct {
	Service string
	Field   string
	Key     string
	Value   string
}

func (FieldAttr) isEvent() {}

// MultigraphSwitch changes the "current service" context for every
// subsequent line until the next switch or end of stream.
type MultigraphSwitch struct {
	Name string
}

func (MultigraphSwitch) isEvent() {}

// Sample is one data point, produced either by the fetch grammar or
// diverted out of a dirty-config line.
type Sample struct {
	Service string
	Field   string
	When    int64
	Value   string
}

func (Sample) isEvent() {}

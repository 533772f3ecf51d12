package worker

import (
	"github.com/opswatch/updateworker/drift"
	"github.com/opswatch/updateworker/rrdpath"
	"github.com/opswatch/updateworker/wireproto"
)

// fieldDecl accumulates the attributes wireproto delivers one at a
// time into the shape the rest of the pipeline needs: enough to build
// an RRD creation call and a drift comparison.
type fieldDecl struct {
	Label   string
	Type    rrdpath.DSType
	Min     string
	Max     string
	OldName string
	Attrs   map[string]string
}

// serviceBuild accumulates one service's config response: its
// service-wide attrs and its per-field declarations, in the order
// wireproto delivered them.
type serviceBuild struct {
	Attrs  map[string]string
	Fields map[string]*fieldDecl
	Order  []string // field names in first-seen order
}

func newServiceBuild() *serviceBuild {
	return &serviceBuild{Attrs: make(map[string]string), Fields: make(map[string]*fieldDecl)}
}

func (b *serviceBuild) field(name string) *fieldDecl {
	f, ok := b.Fields[name]
	if !ok {
		f = &fieldDecl{Attrs: make(map[string]string)}
		b.Fields[name] = f
		b.Order = append(b.Order, name)
	}
	return f
}

// applyEvent folds one config-grammar event into the per-service
// builds, keyed by service name (multigraph-aware).
func applyEvent(builds map[string]*serviceBuild, ev wireproto.Event) {
	switch e := ev.(type) {
	case wireproto.ServiceAttr:
		b := builds[e.Service]
		if b == nil {
			b = newServiceBuild()
			builds[e.Service] = b
		}
		b.Attrs[e.Key] = e.Value
	case wireproto.FieldAttr:
		b := builds[e.Service]
		if b == nil {
			b = newServiceBuild()
			builds[e.Service] = b
		}
		f := b.field(e.Field)
		f.Attrs[e.Key] = e.Value
		switch e.Key {
		case "label":
			f.Label = e.Value
		case "type":
			f.Type = rrdpath.ParseDSType(e.Value)
		case "min":
			f.Min = e.Value
		case "max":
			f.Max = e.Value
		case "oldname":
			f.OldName = e.Value
		}
	case wireproto.MultigraphSwitch:
		if builds[e.Name] == nil {
			builds[e.Name] = newServiceBuild()
		}
	}
}

func (f *fieldDecl) declaration() drift.Declaration {
	return drift.Declaration{Type: f.Type, Min: f.Min, Max: f.Max, OldName: f.OldName}
}

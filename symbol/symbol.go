// Package symbol holds the closed set of symbol kinds and their description codec.
//
// A description is a flat map with a "kind" key plus the kind's fields, as it
// appears in config files:
//
//	{kind: point, size: 12, fill: "#ff0000"}
package symbol

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/creasty/defaults"
	"github.com/mitchellh/mapstructure"

	"github.com/Everpoint/sGis-sub002/feature"
)

var ErrUnknownKind = errors.New("unknown symbol kind")

type Kind int

const (
	KindPoint Kind = iota + 1
	KindPolyline
	KindPolygon
	KindLabel
	KindCluster
	KindImage
)

type entry struct {
	name   string
	fields []string
	new    func() feature.Symbol
	encode func(feature.Symbol) map[string]any
}

var table = map[Kind]entry{
	KindPoint: {
		name:   "point",
		fields: []string{"size", "fill", "stroke", "strokeWidth"},
		new:    func() feature.Symbol { return &Point{} },
		encode: func(s feature.Symbol) map[string]any {
			p := s.(*Point)
			return map[string]any{
				"size": p.Size, "fill": FormatColor(p.Fill),
				"stroke": FormatColor(p.Stroke), "strokeWidth": p.StrokeWidth,
			}
		},
	},
	KindPolyline: {
		name:   "polyline",
		fields: []string{"stroke", "strokeWidth"},
		new:    func() feature.Symbol { return &Polyline{} },
		encode: func(s feature.Symbol) map[string]any {
			p := s.(*Polyline)
			return map[string]any{"stroke": FormatColor(p.Stroke), "strokeWidth": p.StrokeWidth}
		},
	},
	KindPolygon: {
		name:   "polygon",
		fields: []string{"fill", "stroke", "strokeWidth"},
		new:    func() feature.Symbol { return &Polygon{} },
		encode: func(s feature.Symbol) map[string]any {
			p := s.(*Polygon)
			return map[string]any{
				"fill": FormatColor(p.Fill), "stroke": FormatColor(p.Stroke), "strokeWidth": p.StrokeWidth,
			}
		},
	},
	KindLabel: {
		name:   "label",
		fields: []string{"color", "offsetX", "offsetY"},
		new:    func() feature.Symbol { return &Label{} },
		encode: func(s feature.Symbol) map[string]any {
			l := s.(*Label)
			return map[string]any{"color": FormatColor(l.Color), "offsetX": l.OffsetX, "offsetY": l.OffsetY}
		},
	},
	KindCluster: {
		name:   "cluster",
		fields: []string{"size", "fill", "stroke", "strokeWidth", "labelColor"},
		new:    func() feature.Symbol { return &Cluster{} },
		encode: func(s feature.Symbol) map[string]any {
			c := s.(*Cluster)
			return map[string]any{
				"size": c.Size, "fill": FormatColor(c.Fill), "stroke": FormatColor(c.Stroke),
				"strokeWidth": c.StrokeWidth, "labelColor": FormatColor(c.LabelColor),
			}
		},
	},
	KindImage: {
		name:   "image",
		fields: []string{"opacity"},
		new:    func() feature.Symbol { return &Image{} },
		encode: func(s feature.Symbol) map[string]any {
			return map[string]any{"opacity": s.(*Image).Opacity}
		},
	},
}

func (k Kind) String() string {
	if e, ok := table[k]; ok {
		return e.name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Fields lists the description keys accepted for k.
func (k Kind) Fields() []string {
	return slices.Clone(table[k].fields)
}

// ParseKind looks a kind up by name.
func ParseKind(name string) (Kind, bool) {
	for k, e := range table {
		if e.name == name {
			return k, true
		}
	}
	return 0, false
}

// Kinds returns every known kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(table))
	for k := range table {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// KindOf reports the kind of a symbol built by this package.
func KindOf(s feature.Symbol) (Kind, error) {
	switch s.(type) {
	case *Point:
		return KindPoint, nil
	case *Polyline:
		return KindPolyline, nil
	case *Polygon:
		return KindPolygon, nil
	case *Label:
		return KindLabel, nil
	case *Cluster:
		return KindCluster, nil
	case *Image:
		return KindImage, nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnknownKind, s)
	}
}

// New returns the default symbol of kind k.
func New(k Kind) (feature.Symbol, error) {
	e, ok := table[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, k)
	}
	s := e.new()
	if err := defaults.Set(s); err != nil {
		return nil, fmt.Errorf("symbol %s: %w", e.name, err)
	}
	return s, nil
}

// MustNew is New for kinds known at compile time.
func MustNew(k Kind) feature.Symbol {
	s, err := New(k)
	if err != nil {
		panic(err)
	}
	return s
}

// Decode builds a symbol from its description. Fields left out keep their defaults.
func Decode(desc map[string]any) (feature.Symbol, error) {
	name, _ := desc["kind"].(string)
	name = strings.ToLower(name)
	k, ok := ParseKind(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
	e := table[k]
	fields := make(map[string]any, len(desc))
	for key, v := range desc {
		if key == "kind" {
			continue
		}
		// viper lowercases keys, so fields match case-insensitively
		i := slices.IndexFunc(e.fields, func(f string) bool { return strings.EqualFold(f, key) })
		if i < 0 {
			return nil, fmt.Errorf("symbol %s: unknown field %q", name, key)
		}
		fields[e.fields[i]] = v
	}
	s, err := New(k)
	if err != nil {
		return nil, err
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       colorHook,
		WeaklyTypedInput: true,
		Result:           s,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(fields); err != nil {
		return nil, fmt.Errorf("symbol %s: %w", name, err)
	}
	return s, nil
}

// Encode produces the description Decode accepts.
func Encode(s feature.Symbol) (map[string]any, error) {
	k, err := KindOf(s)
	if err != nil {
		return nil, err
	}
	e := table[k]
	desc := e.encode(s)
	desc["kind"] = e.name
	return desc, nil
}

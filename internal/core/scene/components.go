package scene

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/noodles-scene/noodles-server/internal/core/ids"
)

// Component is implemented by every one of the thirteen component
// kinds. applyDelta and validate are unexported: components are only
// ever mutated through Registry, which enforces the id/name invariants
// around them.
type Component interface {
	ComponentID() ids.ID
	Name() string
	Kind() ids.Kind
	// References lists every other component ID this component points
	// at, for the registry's reverse-reference index and topological
	// snapshot ordering.
	References() []ids.ID
	applyDelta(d Delta) error
	validate(alive func(ids.ID) bool) error
	// clone returns a shallow copy of the same concrete type, used by
	// Registry.Update to stage a delta without mutating the live
	// component until validation passes.
	clone() Component
}

// base carries the identity fields common to every component kind.
type base struct {
	id   ids.ID
	name string
}

func (b *base) ComponentID() ids.ID { return b.id }
func (b *base) Name() string        { return b.name }
func (b *base) Kind() ids.Kind      { return b.id.Kind }

// SetIdentity assigns id and name to a freshly built component, before
// it is handed to Registry.Create. It exists because base's fields are
// unexported: callers outside this package (server.Runtime's
// StartingComponent.Build closures, an embedding program's own
// component builders) have no other way to complete a literal like
// &Entity{Transform: ...} with its identity.
func (b *base) SetIdentity(id ids.ID, name string) {
	b.id = id
	b.name = name
}

// WirePayload projects c into a map carrying its id and name at the top
// level alongside its own exported fields, for use as a Create<Kind>
// broadcast payload (or the startup JSON dump). Id and name live in the
// unexported base and are otherwise invisible to cbor.Marshal/
// json.Marshal, matching how rigatoni's create dict carries id/name at
// the top level (noodle_objects.py's to_dict helpers).
func WirePayload(c Component) (map[string]any, error) {
	data, err := cbor.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("scene: marshal component fields: %w", err)
	}
	m := make(map[string]any)
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("scene: decode component fields: %w", err)
	}
	m["id"] = c.ComponentID()
	if name := c.Name(); name != "" {
		m["name"] = name
	}
	return m, nil
}

func checkAlive(alive func(ids.ID) bool, id ids.ID, field string) error {
	if id.IsNil() {
		return nil
	}
	if !alive(id) {
		return fmt.Errorf("%w: field %q -> %v", ErrDanglingReference, field, id)
	}
	return nil
}

// ---- Method ----------------------------------------------------------

// Method is a document- or component-attached, client-invocable
// procedure. The server never stores a handler on the component itself;
// dispatch.Dispatcher maps Method IDs to Go funcs separately.
type Method struct {
	base
	Doc              *string     `cbor:"doc,omitempty"`
	ReturnDoc        *string     `cbor:"return_doc,omitempty"`
	Args             []MethodArg `cbor:"arg_doc,omitempty"`
}

func NewMethod(id ids.ID, name string, doc, returnDoc *string, args []MethodArg) (*Method, error) {
	m := &Method{base: base{id: id, name: name}, Doc: doc, ReturnDoc: returnDoc, Args: args}
	if err := m.validate(func(ids.ID) bool { return true }); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Method) References() []ids.ID { return nil }

func (m *Method) clone() Component { c := *m; return &c }

func (m *Method) validate(func(ids.ID) bool) error {
	return validateMethodArgs(m.Args)
}

func (m *Method) applyDelta(d Delta) error {
	if err := setOptField(d, "doc", &m.Doc); err != nil {
		return err
	}
	if err := setOptField(d, "return_doc", &m.ReturnDoc); err != nil {
		return err
	}
	return setField(d, "arg_doc", &m.Args)
}

// ---- Signal ------------------------------------------------------------

// Signal is a document- or component-attached, server-initiated event
// with documented argument shape.
type Signal struct {
	base
	Doc  *string     `cbor:"doc,omitempty"`
	Args []MethodArg `cbor:"arg_doc,omitempty"`
}

func NewSignal(id ids.ID, name string, doc *string, args []MethodArg) (*Signal, error) {
	s := &Signal{base: base{id: id, name: name}, Doc: doc, Args: args}
	if err := s.validate(func(ids.ID) bool { return true }); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Signal) References() []ids.ID { return nil }

func (s *Signal) clone() Component { c := *s; return &c }

func (s *Signal) validate(func(ids.ID) bool) error {
	return validateMethodArgs(s.Args)
}

func (s *Signal) applyDelta(d Delta) error {
	if err := setOptField(d, "doc", &s.Doc); err != nil {
		return err
	}
	return setField(d, "arg_doc", &s.Args)
}

// ---- Entity --------------------------------------------------------------

// Entity is a node in the scene's spatial/ownership graph: a transform
// plus zero or one of a text/web/render representation, and the
// methods/signals/tables/plots/lights it exposes.
type Entity struct {
	base
	Parent      *ids.ID                `cbor:"parent,omitempty"`
	Transform   *Mat4                  `cbor:"transform,omitempty"`
	TextRep     *TextRepresentation    `cbor:"text_rep,omitempty"`
	WebRep      *WebRepresentation     `cbor:"web_rep,omitempty"`
	RenderRep   *RenderRepresentation  `cbor:"render_rep,omitempty"`
	Lights      []ids.ID               `cbor:"lights,omitempty"`
	Tables      []ids.ID               `cbor:"tables,omitempty"`
	Plots       []ids.ID               `cbor:"plots,omitempty"`
	Tags        []string               `cbor:"tags,omitempty"`
	MethodsList []ids.ID               `cbor:"methods_list,omitempty"`
	SignalsList []ids.ID               `cbor:"signals_list,omitempty"`
	Influence   *BoundingBox           `cbor:"influence,omitempty"`
}

func (e *Entity) References() []ids.ID {
	var refs []ids.ID
	if e.Parent != nil {
		refs = append(refs, *e.Parent)
	}
	if e.RenderRep != nil {
		refs = append(refs, e.RenderRep.Mesh)
		if e.RenderRep.Instances != nil {
			refs = append(refs, e.RenderRep.Instances.View)
		}
	}
	refs = append(refs, e.Lights...)
	refs = append(refs, e.Tables...)
	refs = append(refs, e.Plots...)
	refs = append(refs, e.MethodsList...)
	refs = append(refs, e.SignalsList...)
	return refs
}

func (e *Entity) clone() Component { c := *e; return &c }

func (e *Entity) validate(alive func(ids.ID) bool) error {
	repCount := 0
	if e.TextRep != nil {
		repCount++
	}
	if e.WebRep != nil {
		repCount++
	}
	if e.RenderRep != nil {
		repCount++
	}
	if repCount > 1 {
		return fmt.Errorf("%w: entity has more than one representation", ErrInvalidField)
	}
	if e.Transform != nil && !e.Transform.finite() {
		return fmt.Errorf("%w: transform has non-finite component", ErrInvalidField)
	}
	if e.Influence != nil && !e.Influence.finite() {
		return fmt.Errorf("%w: influence has non-finite component", ErrInvalidField)
	}
	for _, id := range e.References() {
		field := "parent/render_rep/lights/tables/plots/methods_list/signals_list"
		if err := checkAlive(alive, id, field); err != nil {
			return err
		}
	}
	return nil
}

func (e *Entity) applyDelta(d Delta) error {
	if err := setOptField(d, "parent", &e.Parent); err != nil {
		return err
	}
	if err := setOptField(d, "transform", &e.Transform); err != nil {
		return err
	}
	if err := setOptField(d, "text_rep", &e.TextRep); err != nil {
		return err
	}
	if err := setOptField(d, "web_rep", &e.WebRep); err != nil {
		return err
	}
	if err := setOptField(d, "render_rep", &e.RenderRep); err != nil {
		return err
	}
	if err := setField(d, "lights", &e.Lights); err != nil {
		return err
	}
	if err := setField(d, "tables", &e.Tables); err != nil {
		return err
	}
	if err := setField(d, "plots", &e.Plots); err != nil {
		return err
	}
	if err := setField(d, "tags", &e.Tags); err != nil {
		return err
	}
	if err := setField(d, "methods_list", &e.MethodsList); err != nil {
		return err
	}
	if err := setField(d, "signals_list", &e.SignalsList); err != nil {
		return err
	}
	return setOptField(d, "influence", &e.Influence)
}

// ---- Plot ----------------------------------------------------------------

// Plot is a 2D visualization, backed either by a Table or an external
// URL, exposing its own methods/signals.
type Plot struct {
	base
	Table       *ids.ID  `cbor:"table,omitempty"`
	SimplePlot  *string  `cbor:"simple_plot,omitempty"`
	URLPlot     *string  `cbor:"url_plot,omitempty"`
	MethodsList []ids.ID `cbor:"methods_list,omitempty"`
	SignalsList []ids.ID `cbor:"signals_list,omitempty"`
}

func (p *Plot) References() []ids.ID {
	var refs []ids.ID
	if p.Table != nil {
		refs = append(refs, *p.Table)
	}
	refs = append(refs, p.MethodsList...)
	refs = append(refs, p.SignalsList...)
	return refs
}

func (p *Plot) clone() Component { c := *p; return &c }

func (p *Plot) validate(alive func(ids.ID) bool) error {
	if (p.SimplePlot == nil) == (p.URLPlot == nil) {
		return fmt.Errorf("%w: plot requires exactly one of simple_plot/url_plot", ErrInvalidField)
	}
	for _, id := range p.References() {
		if err := checkAlive(alive, id, "table/methods_list/signals_list"); err != nil {
			return err
		}
	}
	return nil
}

func (p *Plot) applyDelta(d Delta) error {
	if err := setOptField(d, "table", &p.Table); err != nil {
		return err
	}
	if err := setOptField(d, "simple_plot", &p.SimplePlot); err != nil {
		return err
	}
	if err := setOptField(d, "url_plot", &p.URLPlot); err != nil {
		return err
	}
	if err := setField(d, "methods_list", &p.MethodsList); err != nil {
		return err
	}
	return setField(d, "signals_list", &p.SignalsList)
}

// ---- Buffer ----------------------------------------------------------

// Buffer is a raw byte blob, held inline or referenced by URI.
type Buffer struct {
	base
	Size       int64   `cbor:"size"`
	InlineBytes []byte  `cbor:"inline_bytes,omitempty"`
	URIBytes    *string `cbor:"uri_bytes,omitempty"`
}

func (b *Buffer) References() []ids.ID { return nil }

func (b *Buffer) clone() Component { c := *b; return &c }

func (b *Buffer) validate(func(ids.ID) bool) error {
	if b.Size < 0 {
		return fmt.Errorf("%w: buffer size negative", ErrInvalidField)
	}
	if (b.InlineBytes == nil) == (b.URIBytes == nil) {
		return fmt.Errorf("%w: buffer requires exactly one of inline_bytes/uri_bytes", ErrInvalidField)
	}
	return nil
}

func (b *Buffer) applyDelta(d Delta) error {
	if err := setField(d, "size", &b.Size); err != nil {
		return err
	}
	if err := setField(d, "inline_bytes", &b.InlineBytes); err != nil {
		return err
	}
	return setOptField(d, "uri_bytes", &b.URIBytes)
}

// ---- BufferView --------------------------------------------------------

// BufferView is a typed, byte-ranged slice of a Buffer.
type BufferView struct {
	base
	SourceBuffer ids.ID         `cbor:"source_buffer"`
	Type         BufferViewType `cbor:"type"`
	Offset       int64          `cbor:"offset"`
	Length       int64          `cbor:"length"`
}

func (v *BufferView) References() []ids.ID { return []ids.ID{v.SourceBuffer} }

func (v *BufferView) clone() Component { c := *v; return &c }

func (v *BufferView) validate(alive func(ids.ID) bool) error {
	if !v.Type.valid() {
		return fmt.Errorf("%w: buffer view type %q", ErrInvalidField, v.Type)
	}
	if v.Offset < 0 || v.Length < 0 {
		return fmt.Errorf("%w: buffer view offset/length negative", ErrInvalidField)
	}
	return checkAlive(alive, v.SourceBuffer, "source_buffer")
}

func (v *BufferView) applyDelta(d Delta) error {
	if err := setField(d, "source_buffer", &v.SourceBuffer); err != nil {
		return err
	}
	if err := setField(d, "type", &v.Type); err != nil {
		return err
	}
	if err := setField(d, "offset", &v.Offset); err != nil {
		return err
	}
	return setField(d, "length", &v.Length)
}

// ---- Material ----------------------------------------------------------

// Material is a PBR-ish shading description consumed by GeometryPatch.
type Material struct {
	base
	PBRInfo                *PBRInfo    `cbor:"pbr_info,omitempty"`
	NormalTexture          *TextureRef `cbor:"normal_texture,omitempty"`
	OcclusionTexture       *TextureRef `cbor:"occlusion_texture,omitempty"`
	OcclusionTextureFactor *float64    `cbor:"occlusion_texture_factor,omitempty"`
	EmissiveTexture        *TextureRef `cbor:"emissive_texture,omitempty"`
	EmissiveFactor         *Vec3       `cbor:"emissive_factor,omitempty"`
	UseAlpha               *bool       `cbor:"use_alpha,omitempty"`
	AlphaCutoff            *float64    `cbor:"alpha_cutoff,omitempty"`
	DoubleSided            *bool       `cbor:"double_sided,omitempty"`
}

func (m *Material) References() []ids.ID {
	var refs []ids.ID
	add := func(t *TextureRef) {
		if t != nil {
			refs = append(refs, t.Texture)
		}
	}
	if m.PBRInfo != nil {
		add(m.PBRInfo.BaseColorTexture)
		add(m.PBRInfo.MetalRoughTexture)
	}
	add(m.NormalTexture)
	add(m.OcclusionTexture)
	add(m.EmissiveTexture)
	return refs
}

func (m *Material) clone() Component { c := *m; return &c }

func (m *Material) validate(alive func(ids.ID) bool) error {
	if m.EmissiveFactor != nil && !m.EmissiveFactor.finite() {
		return fmt.Errorf("%w: emissive_factor has non-finite component", ErrInvalidField)
	}
	for _, id := range m.References() {
		if err := checkAlive(alive, id, "material texture reference"); err != nil {
			return err
		}
	}
	return nil
}

func (m *Material) applyDelta(d Delta) error {
	if err := setOptField(d, "pbr_info", &m.PBRInfo); err != nil {
		return err
	}
	if err := setOptField(d, "normal_texture", &m.NormalTexture); err != nil {
		return err
	}
	if err := setOptField(d, "occlusion_texture", &m.OcclusionTexture); err != nil {
		return err
	}
	if err := setOptField(d, "occlusion_texture_factor", &m.OcclusionTextureFactor); err != nil {
		return err
	}
	if err := setOptField(d, "emissive_texture", &m.EmissiveTexture); err != nil {
		return err
	}
	if err := setOptField(d, "emissive_factor", &m.EmissiveFactor); err != nil {
		return err
	}
	if err := setOptField(d, "use_alpha", &m.UseAlpha); err != nil {
		return err
	}
	if err := setOptField(d, "alpha_cutoff", &m.AlphaCutoff); err != nil {
		return err
	}
	return setOptField(d, "double_sided", &m.DoubleSided)
}

// ---- Image -------------------------------------------------------------

// Image is encoded image data, held in a Buffer or referenced by URI.
type Image struct {
	base
	BufferSource *ids.ID `cbor:"buffer_source,omitempty"`
	URISource    *string `cbor:"uri_source,omitempty"`
}

func (i *Image) References() []ids.ID {
	if i.BufferSource != nil {
		return []ids.ID{*i.BufferSource}
	}
	return nil
}

func (i *Image) clone() Component { c := *i; return &c }

func (i *Image) validate(alive func(ids.ID) bool) error {
	if (i.BufferSource == nil) == (i.URISource == nil) {
		return fmt.Errorf("%w: image requires exactly one of buffer_source/uri_source", ErrInvalidField)
	}
	if i.BufferSource != nil {
		return checkAlive(alive, *i.BufferSource, "buffer_source")
	}
	return nil
}

func (i *Image) applyDelta(d Delta) error {
	if err := setOptField(d, "buffer_source", &i.BufferSource); err != nil {
		return err
	}
	return setOptField(d, "uri_source", &i.URISource)
}

// ---- Texture -------------------------------------------------------------

// Texture pairs an Image with an optional Sampler.
type Texture struct {
	base
	Image   ids.ID  `cbor:"image"`
	Sampler *ids.ID `cbor:"sampler,omitempty"`
}

func (t *Texture) References() []ids.ID {
	refs := []ids.ID{t.Image}
	if t.Sampler != nil {
		refs = append(refs, *t.Sampler)
	}
	return refs
}

func (t *Texture) clone() Component { c := *t; return &c }

func (t *Texture) validate(alive func(ids.ID) bool) error {
	if err := checkAlive(alive, t.Image, "image"); err != nil {
		return err
	}
	if t.Sampler != nil {
		return checkAlive(alive, *t.Sampler, "sampler")
	}
	return nil
}

func (t *Texture) applyDelta(d Delta) error {
	if err := setField(d, "image", &t.Image); err != nil {
		return err
	}
	return setOptField(d, "sampler", &t.Sampler)
}

// ---- Sampler -----------------------------------------------------------

// Sampler parameterizes texture filtering and wrap behavior.
type Sampler struct {
	base
	MagFilter *MagFilter       `cbor:"mag_filter,omitempty"`
	MinFilter *MinFilter       `cbor:"min_filter,omitempty"`
	WrapS     *SamplerWrapMode `cbor:"wrap_s,omitempty"`
	WrapT     *SamplerWrapMode `cbor:"wrap_t,omitempty"`
}

func (s *Sampler) References() []ids.ID { return nil }

func (s *Sampler) clone() Component { c := *s; return &c }

func (s *Sampler) validate(func(ids.ID) bool) error {
	if s.MagFilter != nil && !s.MagFilter.valid() {
		return fmt.Errorf("%w: mag_filter %q", ErrInvalidField, *s.MagFilter)
	}
	if s.MinFilter != nil && !s.MinFilter.valid() {
		return fmt.Errorf("%w: min_filter %q", ErrInvalidField, *s.MinFilter)
	}
	if s.WrapS != nil && !s.WrapS.valid() {
		return fmt.Errorf("%w: wrap_s %q", ErrInvalidField, *s.WrapS)
	}
	if s.WrapT != nil && !s.WrapT.valid() {
		return fmt.Errorf("%w: wrap_t %q", ErrInvalidField, *s.WrapT)
	}
	return nil
}

func (s *Sampler) applyDelta(d Delta) error {
	if err := setOptField(d, "mag_filter", &s.MagFilter); err != nil {
		return err
	}
	if err := setOptField(d, "min_filter", &s.MinFilter); err != nil {
		return err
	}
	if err := setOptField(d, "wrap_s", &s.WrapS); err != nil {
		return err
	}
	return setOptField(d, "wrap_t", &s.WrapT)
}

// ---- Light -------------------------------------------------------------

// Light is a point, spot, or directional light source.
type Light struct {
	base
	Color       *Vec3             `cbor:"color,omitempty"`
	Intensity   *float64          `cbor:"intensity,omitempty"`
	Point       *PointLight       `cbor:"point,omitempty"`
	Spot        *SpotLight        `cbor:"spot,omitempty"`
	Directional *DirectionalLight `cbor:"directional,omitempty"`
}

func (l *Light) References() []ids.ID { return nil }

func (l *Light) clone() Component { c := *l; return &c }

func (l *Light) validate(func(ids.ID) bool) error {
	n := 0
	if l.Point != nil {
		n++
	}
	if l.Spot != nil {
		n++
	}
	if l.Directional != nil {
		n++
	}
	if n != 1 {
		return fmt.Errorf("%w: light requires exactly one of point/spot/directional", ErrInvalidField)
	}
	if l.Color != nil && !l.Color.finite() {
		return fmt.Errorf("%w: color has non-finite component", ErrInvalidField)
	}
	return nil
}

func (l *Light) applyDelta(d Delta) error {
	if err := setOptField(d, "color", &l.Color); err != nil {
		return err
	}
	if err := setOptField(d, "intensity", &l.Intensity); err != nil {
		return err
	}
	if err := setOptField(d, "point", &l.Point); err != nil {
		return err
	}
	if err := setOptField(d, "spot", &l.Spot); err != nil {
		return err
	}
	return setOptField(d, "directional", &l.Directional)
}

// ---- Geometry ----------------------------------------------------------

// Geometry is an ordered list of render batches (patches), each with its
// own attributes, optional index stream, and material.
type Geometry struct {
	base
	Patches []GeometryPatch `cbor:"patches"`
}

func (g *Geometry) References() []ids.ID {
	var refs []ids.ID
	for _, p := range g.Patches {
		for _, a := range p.Attributes {
			refs = append(refs, a.View)
		}
		if p.Indices != nil {
			refs = append(refs, p.Indices.View)
		}
		refs = append(refs, p.Material)
	}
	return refs
}

func (g *Geometry) clone() Component { c := *g; return &c }

func (g *Geometry) validate(alive func(ids.ID) bool) error {
	if len(g.Patches) == 0 {
		return fmt.Errorf("%w: geometry requires at least one patch", ErrInvalidField)
	}
	for i, p := range g.Patches {
		if !p.Type.valid() {
			return fmt.Errorf("%w: patch %d type %q", ErrInvalidField, i, p.Type)
		}
		if p.VertexCount < 0 {
			return fmt.Errorf("%w: patch %d vertex_count negative", ErrInvalidField, i)
		}
		if len(p.Attributes) == 0 {
			return fmt.Errorf("%w: patch %d has no attributes", ErrInvalidField, i)
		}
		for j, a := range p.Attributes {
			if !a.Semantic.valid() {
				return fmt.Errorf("%w: patch %d attribute %d semantic %q", ErrInvalidField, i, j, a.Semantic)
			}
			if !a.Format.valid() {
				return fmt.Errorf("%w: patch %d attribute %d format %q", ErrInvalidField, i, j, a.Format)
			}
			if err := checkAlive(alive, a.View, "attribute view"); err != nil {
				return err
			}
		}
		if p.Indices != nil {
			if !p.Indices.Format.valid() {
				return fmt.Errorf("%w: patch %d index format %q", ErrInvalidField, i, p.Indices.Format)
			}
			if err := checkAlive(alive, p.Indices.View, "index view"); err != nil {
				return err
			}
		}
		if err := checkAlive(alive, p.Material, "patch material"); err != nil {
			return err
		}
	}
	return nil
}

func (g *Geometry) applyDelta(d Delta) error {
	return setField(d, "patches", &g.Patches)
}

// ---- Table ---------------------------------------------------------------

// Table is a row-oriented dataset with server-delegated mutation
// handling; row storage itself lives behind its Delegate, not here.
type Table struct {
	base
	Meta        *string  `cbor:"meta,omitempty"`
	MethodsList []ids.ID `cbor:"methods_list,omitempty"`
	SignalsList []ids.ID `cbor:"signals_list,omitempty"`
}

func (t *Table) References() []ids.ID {
	var refs []ids.ID
	refs = append(refs, t.MethodsList...)
	refs = append(refs, t.SignalsList...)
	return refs
}

func (t *Table) clone() Component { c := *t; return &c }

func (t *Table) validate(alive func(ids.ID) bool) error {
	for _, id := range t.References() {
		if err := checkAlive(alive, id, "methods_list/signals_list"); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) applyDelta(d Delta) error {
	if err := setOptField(d, "meta", &t.Meta); err != nil {
		return err
	}
	if err := setField(d, "methods_list", &t.MethodsList); err != nil {
		return err
	}
	return setField(d, "signals_list", &t.SignalsList)
}

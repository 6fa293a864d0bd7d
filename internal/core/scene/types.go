// Package scene implements the component registry: the authoritative,
// typed store of every live NOODLES component, its referential
// integrity checks, and the deterministic snapshot ordering new clients
// receive.
package scene

import (
	"fmt"
	"math"

	"github.com/noodles-scene/noodles-server/internal/core/ids"
)

// Vec3, Vec4, Mat3, Mat4 are the fixed-length float vectors and
// row-major matrices used across component fields.
type Vec3 [3]float64
type Vec4 [4]float64
type Mat3 [9]float64
type Mat4 [16]float64

func finiteSlice(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (v Vec3) finite() bool { return finiteSlice(v[0], v[1], v[2]) }
func (v Vec4) finite() bool { return finiteSlice(v[0], v[1], v[2], v[3]) }
func (m Mat3) finite() bool { return finiteSlice(m[:]...) }
func (m Mat4) finite() bool { return finiteSlice(m[:]...) }

// AttributeSemantic names what a geometry attribute encodes.
type AttributeSemantic string

const (
	SemanticPosition AttributeSemantic = "POSITION"
	SemanticNormal   AttributeSemantic = "NORMAL"
	SemanticTangent  AttributeSemantic = "TANGENT"
	SemanticTexture  AttributeSemantic = "TEXTURE"
	SemanticColor    AttributeSemantic = "COLOR"
)

func (s AttributeSemantic) valid() bool {
	switch s {
	case SemanticPosition, SemanticNormal, SemanticTangent, SemanticTexture, SemanticColor:
		return true
	}
	return false
}

// Format names the byte layout of a geometry attribute.
type Format string

const (
	FormatU8      Format = "U8"
	FormatU16     Format = "U16"
	FormatU32     Format = "U32"
	FormatU8Vec4  Format = "U8VEC4"
	FormatU16Vec2 Format = "U16VEC2"
	FormatVec2    Format = "VEC2"
	FormatVec3    Format = "VEC3"
	FormatVec4    Format = "VEC4"
	FormatMat3    Format = "MAT3"
	FormatMat4    Format = "MAT4"
)

func (f Format) valid() bool {
	switch f {
	case FormatU8, FormatU16, FormatU32, FormatU8Vec4, FormatU16Vec2, FormatVec2, FormatVec3, FormatVec4, FormatMat3, FormatMat4:
		return true
	}
	return false
}

// IndexFormat names the byte layout of a geometry index buffer.
type IndexFormat string

const (
	IndexFormatU8  IndexFormat = "U8"
	IndexFormatU16 IndexFormat = "U16"
	IndexFormatU32 IndexFormat = "U32"
)

func (f IndexFormat) valid() bool {
	switch f {
	case IndexFormatU8, IndexFormatU16, IndexFormatU32:
		return true
	}
	return false
}

// PrimitiveType names the GPU primitive a geometry patch renders as.
type PrimitiveType string

const (
	PrimitivePoints        PrimitiveType = "POINTS"
	PrimitiveLines         PrimitiveType = "LINES"
	PrimitiveLineLoop      PrimitiveType = "LINE_LOOP"
	PrimitiveLineStrip     PrimitiveType = "LINE_STRIP"
	PrimitiveTriangles     PrimitiveType = "TRIANGLES"
	PrimitiveTriangleStrip PrimitiveType = "TRIANGLE_STRIP"
)

func (p PrimitiveType) valid() bool {
	switch p {
	case PrimitivePoints, PrimitiveLines, PrimitiveLineLoop, PrimitiveLineStrip, PrimitiveTriangles, PrimitiveTriangleStrip:
		return true
	}
	return false
}

// ColumnType names the scalar type stored in a table column.
type ColumnType string

const (
	ColumnText    ColumnType = "TEXT"
	ColumnReal    ColumnType = "REAL"
	ColumnInteger ColumnType = "INTEGER"
)

func (c ColumnType) valid() bool {
	switch c {
	case ColumnText, ColumnReal, ColumnInteger:
		return true
	}
	return false
}

// BufferViewType names what kind of data a buffer view exposes.
type BufferViewType string

const (
	BufferViewUnknown  BufferViewType = "UNK"
	BufferViewGeometry BufferViewType = "GEOMETRY"
	BufferViewImage    BufferViewType = "IMAGE"
)

func (t BufferViewType) valid() bool {
	switch t {
	case BufferViewUnknown, BufferViewGeometry, BufferViewImage:
		return true
	}
	return false
}

// SamplerWrapMode names a texture sampler's wrap behavior on one axis.
type SamplerWrapMode string

const (
	WrapClampToEdge    SamplerWrapMode = "CLAMP_TO_EDGE"
	WrapMirroredRepeat SamplerWrapMode = "MIRRORED_REPEAT"
	WrapRepeat         SamplerWrapMode = "REPEAT"
)

func (m SamplerWrapMode) valid() bool {
	switch m {
	case WrapClampToEdge, WrapMirroredRepeat, WrapRepeat:
		return true
	}
	return false
}

// MagFilter names a texture sampler's magnification filter.
type MagFilter string

const (
	MagNearest MagFilter = "NEAREST"
	MagLinear  MagFilter = "LINEAR"
)

func (f MagFilter) valid() bool {
	switch f {
	case MagNearest, MagLinear:
		return true
	}
	return false
}

// MinFilter names a texture sampler's minification filter.
type MinFilter string

const (
	MinNearest             MinFilter = "NEAREST"
	MinLinear              MinFilter = "LINEAR"
	MinLinearMipmapLinear  MinFilter = "LINEAR_MIPMAP_LINEAR"
)

func (f MinFilter) valid() bool {
	switch f {
	case MinNearest, MinLinear, MinLinearMipmapLinear:
		return true
	}
	return false
}

// MethodArg documents one argument of a Method or Signal.
type MethodArg struct {
	Name       string  `cbor:"name"`
	Doc        *string `cbor:"doc,omitempty"`
	EditorHint *string `cbor:"editor_hint,omitempty"`
}

// BoundingBox is an axis-aligned bounding box.
type BoundingBox struct {
	Min Vec3 `cbor:"min"`
	Max Vec3 `cbor:"max"`
}

func (b BoundingBox) finite() bool { return b.Min.finite() && b.Max.finite() }

// TextRepresentation renders an entity as flat text.
type TextRepresentation struct {
	Text   string   `cbor:"txt"`
	Font   *string  `cbor:"font,omitempty"`
	Height *float64 `cbor:"height,omitempty"`
	Width  *float64 `cbor:"width,omitempty"`
}

// WebRepresentation renders an entity as an embedded web page.
type WebRepresentation struct {
	Source string   `cbor:"source"`
	Height *float64 `cbor:"height,omitempty"`
	Width  *float64 `cbor:"width,omitempty"`
}

// InstanceSource points at a buffer view of per-instance transforms.
type InstanceSource struct {
	View   ids.ID       `cbor:"view"`
	Stride int          `cbor:"stride"`
	BB     *BoundingBox `cbor:"bb,omitempty"`
}

// RenderRepresentation renders an entity as a geometry, optionally
// instanced.
type RenderRepresentation struct {
	Mesh      ids.ID          `cbor:"mesh"`
	Instances *InstanceSource `cbor:"instances,omitempty"`
}

// TextureRef references a texture with an optional UV transform.
type TextureRef struct {
	Texture          ids.ID `cbor:"texture"`
	Transform        *Mat3  `cbor:"transform,omitempty"`
	TextureCoordSlot *int   `cbor:"texture_coord_slot,omitempty"`
}

// PBRInfo is the physically-based rendering parameter set of a Material.
type PBRInfo struct {
	BaseColor         *Vec4       `cbor:"base_color,omitempty"`
	BaseColorTexture  *TextureRef `cbor:"base_color_texture,omitempty"`
	Metallic          *float64    `cbor:"metallic,omitempty"`
	Roughness         *float64    `cbor:"roughness,omitempty"`
	MetalRoughTexture *TextureRef `cbor:"metal_rough_texture,omitempty"`
}

// PointLight parameterizes a Light with point=true.
type PointLight struct {
	Range float64 `cbor:"range"`
}

// SpotLight parameterizes a Light with spot=true.
type SpotLight struct {
	Range             float64 `cbor:"range"`
	InnerConeAngleRad float64 `cbor:"inner_cone_angle_rad"`
	OuterConeAngleRad float64 `cbor:"outer_cone_angle_rad"`
}

// DirectionalLight parameterizes a Light with directional=true.
type DirectionalLight struct {
	Range float64 `cbor:"range"`
}

// Attribute is one vertex-data stream of a geometry patch.
type Attribute struct {
	View          ids.ID            `cbor:"view"`
	Semantic      AttributeSemantic `cbor:"semantic"`
	Channel       *int              `cbor:"channel,omitempty"`
	Offset        int               `cbor:"offset"`
	Stride        int               `cbor:"stride"`
	Format        Format            `cbor:"format"`
	MinimumValue  []float64         `cbor:"minimum_value,omitempty"`
	MaximumValue  []float64         `cbor:"maximum_value,omitempty"`
	Normalized    bool              `cbor:"normalized"`
}

// Index is the vertex-index stream of a geometry patch.
type Index struct {
	View   ids.ID      `cbor:"view"`
	Count  int         `cbor:"count"`
	Offset int         `cbor:"offset"`
	Stride int         `cbor:"stride"`
	Format IndexFormat `cbor:"format"`
}

// GeometryPatch combines vertex attributes, an optional index stream,
// and a material into one renderable primitive batch.
type GeometryPatch struct {
	Attributes  []Attribute   `cbor:"attributes"`
	VertexCount int           `cbor:"vertex_count"`
	Indices     *Index        `cbor:"indices,omitempty"`
	Type        PrimitiveType `cbor:"type"`
	Material    ids.ID        `cbor:"material"`
}

// SelectionRange is a contiguous, half-open range of table row keys.
type SelectionRange struct {
	KeyFromInclusive int64 `cbor:"key_from_inclusive"`
	KeyToExclusive   int64 `cbor:"key_to_exclusive"`
}

// Selection names a set of table rows, by explicit key list and/or
// ranges.
type Selection struct {
	Name      string           `cbor:"name"`
	Rows      []int64          `cbor:"rows,omitempty"`
	RowRanges []SelectionRange `cbor:"row_ranges,omitempty"`
}

// TableColumnInfo describes one column of a Table.
type TableColumnInfo struct {
	Name string     `cbor:"name"`
	Type ColumnType `cbor:"type"`
}

func validateMethodArgs(args []MethodArg) error {
	for i, a := range args {
		if a.Name == "" {
			return fmt.Errorf("%w: arg %d missing name", ErrInvalidField, i)
		}
	}
	return nil
}

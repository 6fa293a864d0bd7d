package server

import (
	"github.com/noodles-scene/noodles-server/internal/core/ids"
	"github.com/noodles-scene/noodles-server/internal/core/scene"
	"github.com/noodles-scene/noodles-server/internal/core/wire"
)

// kindTags names the Create/Update?/Delete tags a component kind uses
// on the wire, fixed exactly as spec.md §4.C's tag table.
type kindTags struct {
	create    wire.ServerTag
	update    wire.ServerTag
	hasUpdate bool
	delete    wire.ServerTag
}

var tagsByKind = map[ids.Kind]kindTags{
	ids.KindMethod:     {create: wire.TagMethodCreate, delete: wire.TagMethodDelete},
	ids.KindSignal:     {create: wire.TagSignalCreate, delete: wire.TagSignalDelete},
	ids.KindEntity:     {create: wire.TagEntityCreate, update: wire.TagEntityUpdate, hasUpdate: true, delete: wire.TagEntityDelete},
	ids.KindPlot:       {create: wire.TagPlotCreate, update: wire.TagPlotUpdate, hasUpdate: true, delete: wire.TagPlotDelete},
	ids.KindBuffer:     {create: wire.TagBufferCreate, delete: wire.TagBufferDelete},
	ids.KindBufferView: {create: wire.TagBufferViewCreate, delete: wire.TagBufferViewDelete},
	ids.KindMaterial:   {create: wire.TagMaterialCreate, update: wire.TagMaterialUpdate, hasUpdate: true, delete: wire.TagMaterialDelete},
	ids.KindImage:      {create: wire.TagImageCreate, delete: wire.TagImageDelete},
	ids.KindTexture:    {create: wire.TagTextureCreate, delete: wire.TagTextureDelete},
	ids.KindSampler:    {create: wire.TagSamplerCreate, delete: wire.TagSamplerDelete},
	ids.KindLight:      {create: wire.TagLightCreate, update: wire.TagLightUpdate, hasUpdate: true, delete: wire.TagLightDelete},
	ids.KindGeometry:   {create: wire.TagGeometryCreate, delete: wire.TagGeometryDelete},
	ids.KindTable:      {create: wire.TagTableCreate, update: wire.TagTableUpdate, hasUpdate: true, delete: wire.TagTableDelete},
}

// idPayload is the {id: ...} shape shared by Update<Kind> (merged with
// the delta fields) and, via DeleteRef, Delete<Kind> messages.
type idPayload map[string]any

// updatePayload merges id into delta's already-CBOR-encoded field
// values, producing the exact map an Update<Kind> message broadcasts —
// the delta's encoded bytes passed through verbatim, keyed by id.
func updatePayload(id ids.ID, delta scene.Delta) idPayload {
	p := idPayload{"id": id}
	for k, v := range delta {
		p[k] = v
	}
	return p
}

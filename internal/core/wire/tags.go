// Package wire implements the CBOR tag-framing used on every NOODLES
// connection: a top-level CBOR array alternating small integer tags and
// CBOR-map payloads, encoded and decoded byte-exactly against the tag
// table fixed by the protocol.
package wire

// ServerTag identifies a server-to-client message kind.
type ServerTag uint64

// Server-to-client tags, fixed by the protocol's message spec.
const (
	TagMethodCreate    ServerTag = 0
	TagMethodDelete    ServerTag = 1
	TagSignalCreate    ServerTag = 2
	TagSignalDelete    ServerTag = 3
	TagEntityCreate    ServerTag = 4
	TagEntityUpdate    ServerTag = 5
	TagEntityDelete    ServerTag = 6
	TagPlotCreate      ServerTag = 7
	TagPlotUpdate      ServerTag = 8
	TagPlotDelete      ServerTag = 9
	TagBufferCreate    ServerTag = 10
	TagBufferDelete    ServerTag = 11
	TagBufferViewCreate ServerTag = 12
	TagBufferViewDelete ServerTag = 13
	TagMaterialCreate  ServerTag = 14
	TagMaterialUpdate  ServerTag = 15
	TagMaterialDelete  ServerTag = 16
	TagImageCreate     ServerTag = 17
	TagImageDelete     ServerTag = 18
	TagTextureCreate   ServerTag = 19
	TagTextureDelete   ServerTag = 20
	TagSamplerCreate   ServerTag = 21
	TagSamplerDelete   ServerTag = 22
	TagLightCreate     ServerTag = 23
	TagLightUpdate     ServerTag = 24
	TagLightDelete     ServerTag = 25
	TagGeometryCreate  ServerTag = 26
	TagGeometryDelete  ServerTag = 27
	TagTableCreate     ServerTag = 28
	TagTableUpdate     ServerTag = 29
	TagTableDelete     ServerTag = 30
	TagDocumentUpdate  ServerTag = 31
	TagDocumentReset   ServerTag = 32
	TagSignalInvoke    ServerTag = 33
	TagMethodReply     ServerTag = 34
	TagInitDone        ServerTag = 35
)

func (t ServerTag) String() string {
	switch t {
	case TagMethodCreate:
		return "MethodCreate"
	case TagMethodDelete:
		return "MethodDelete"
	case TagSignalCreate:
		return "SignalCreate"
	case TagSignalDelete:
		return "SignalDelete"
	case TagEntityCreate:
		return "EntityCreate"
	case TagEntityUpdate:
		return "EntityUpdate"
	case TagEntityDelete:
		return "EntityDelete"
	case TagPlotCreate:
		return "PlotCreate"
	case TagPlotUpdate:
		return "PlotUpdate"
	case TagPlotDelete:
		return "PlotDelete"
	case TagBufferCreate:
		return "BufferCreate"
	case TagBufferDelete:
		return "BufferDelete"
	case TagBufferViewCreate:
		return "BufferViewCreate"
	case TagBufferViewDelete:
		return "BufferViewDelete"
	case TagMaterialCreate:
		return "MaterialCreate"
	case TagMaterialUpdate:
		return "MaterialUpdate"
	case TagMaterialDelete:
		return "MaterialDelete"
	case TagImageCreate:
		return "ImageCreate"
	case TagImageDelete:
		return "ImageDelete"
	case TagTextureCreate:
		return "TextureCreate"
	case TagTextureDelete:
		return "TextureDelete"
	case TagSamplerCreate:
		return "SamplerCreate"
	case TagSamplerDelete:
		return "SamplerDelete"
	case TagLightCreate:
		return "LightCreate"
	case TagLightUpdate:
		return "LightUpdate"
	case TagLightDelete:
		return "LightDelete"
	case TagGeometryCreate:
		return "GeometryCreate"
	case TagGeometryDelete:
		return "GeometryDelete"
	case TagTableCreate:
		return "TableCreate"
	case TagTableUpdate:
		return "TableUpdate"
	case TagTableDelete:
		return "TableDelete"
	case TagDocumentUpdate:
		return "DocumentUpdate"
	case TagDocumentReset:
		return "DocumentReset"
	case TagSignalInvoke:
		return "SignalInvoke"
	case TagMethodReply:
		return "MethodReply"
	case TagInitDone:
		return "InitDone"
	default:
		return "Unknown"
	}
}

// ClientTag identifies a client-to-server message kind. The numeric
// values intentionally overlap with ServerTag's — direction, not tag
// uniqueness, disambiguates them.
type ClientTag uint64

const (
	TagIntroMessage ClientTag = 0
	TagInvokeMethod ClientTag = 1
)

func (t ClientTag) String() string {
	switch t {
	case TagIntroMessage:
		return "IntroMessage"
	case TagInvokeMethod:
		return "InvokeMethod"
	default:
		return "Unknown"
	}
}

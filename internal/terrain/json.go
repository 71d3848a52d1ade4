package terrain

import (
	"fmt"
	"io"

	"github.com/golang/geo/r3"
	jsoniter "github.com/json-iterator/go"
)

// JSON field values of the tile document.
const (
	VertexSemantic = "pt"
	IndexSemantic  = "TRIANGLES"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MeshDocument is the decoded form of a JSON tile.
type MeshDocument struct {
	VertexSemantic string        `json:"VertexSemantic"`
	Vertices       []float64     `json:"Vertices"`
	IndexSemantic  string        `json:"IndexSemantic"`
	Indices        []uint32      `json:"Indices"`
	Offset         [3]float64    `json:"Offset"`
	BoundingBox    [2][3]float64 `json:"BoundingBox"`
	CurtainIndex   int           `json:"CurtainIndex"`
}

// NumVertices returns the vertex count implied by the interleaved array.
func (d *MeshDocument) NumVertices() int {
	return len(d.Vertices) / 5
}

// WriteJSON streams the mesh as a JSON tile. Positions and texture
// coordinates are written in their shortest single precision form, the
// offset and bounding box with full precision.
func (m *Mesh) WriteJSON(w io.Writer) error {
	s := jsoniter.NewStream(json, w, 64*1024)
	s.WriteObjectStart()

	s.WriteObjectField("VertexSemantic")
	s.WriteString(VertexSemantic)
	s.WriteMore()

	s.WriteObjectField("Vertices")
	s.WriteArrayStart()
	for i, v := range m.Vertices {
		if i > 0 {
			s.WriteMore()
		}
		s.WriteFloat32(v.Position.X)
		s.WriteMore()
		s.WriteFloat32(v.Position.Y)
		s.WriteMore()
		s.WriteFloat32(v.Position.Z)
		s.WriteMore()
		s.WriteFloat32(v.TexCoord.X)
		s.WriteMore()
		s.WriteFloat32(v.TexCoord.Y)
	}
	s.WriteArrayEnd()
	s.WriteMore()

	s.WriteObjectField("IndexSemantic")
	s.WriteString(IndexSemantic)
	s.WriteMore()

	s.WriteObjectField("Indices")
	s.WriteArrayStart()
	for i, idx := range m.Indices {
		if i > 0 {
			s.WriteMore()
		}
		s.WriteUint32(idx)
	}
	s.WriteArrayEnd()
	s.WriteMore()

	s.WriteObjectField("Offset")
	writeVector(s, m.Offset)
	s.WriteMore()

	s.WriteObjectField("BoundingBox")
	s.WriteArrayStart()
	writeVector(s, m.Bounds.Min)
	s.WriteMore()
	writeVector(s, m.Bounds.Max)
	s.WriteArrayEnd()
	s.WriteMore()

	s.WriteObjectField("CurtainIndex")
	s.WriteInt(m.CurtainStart)

	s.WriteObjectEnd()
	if s.Error != nil {
		return fmt.Errorf("encoding tile JSON: %w", s.Error)
	}
	return s.Flush()
}

func writeVector(s *jsoniter.Stream, v r3.Vector) {
	s.WriteArrayStart()
	s.WriteFloat64(v.X)
	s.WriteMore()
	s.WriteFloat64(v.Y)
	s.WriteMore()
	s.WriteFloat64(v.Z)
	s.WriteArrayEnd()
}

// ParseMeshJSON decodes a JSON tile.
func ParseMeshJSON(data []byte) (*MeshDocument, error) {
	var d MeshDocument
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decoding tile JSON: %w", err)
	}
	if d.VertexSemantic != VertexSemantic || d.IndexSemantic != IndexSemantic {
		return nil, fmt.Errorf("decoding tile JSON: unexpected semantics %q/%q", d.VertexSemantic, d.IndexSemantic)
	}
	if len(d.Vertices)%5 != 0 {
		return nil, fmt.Errorf("decoding tile JSON: %d vertex components", len(d.Vertices))
	}
	return &d, nil
}

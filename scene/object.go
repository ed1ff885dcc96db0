// Package scene describes drawable units. A RenderObject is created by the
// caller and handed to the renderer, which reads it but never mutates it.
package scene

import (
	"errors"
	"fmt"

	"github.com/richinsley/molgl/graphics"
	"github.com/richinsley/molgl/shader"
	"github.com/richinsley/molgl/valuecell"
)

// ErrInvalidRenderObject is returned for inconsistent object descriptions.
var ErrInvalidRenderObject = errors.New("invalid render object")

// Kind is the primitive family of a render object.
type Kind int

const (
	PointsKind Kind = iota
	MeshKind
)

func (k Kind) String() string {
	switch k {
	case PointsKind:
		return "points"
	case MeshKind:
		return "mesh"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Float32Cell is the attribute cell type shared by all numeric arrays.
type Float32Cell = valuecell.Cell[[]float32]

// ColorData is either one RGB triple or one RGB triple per vertex.
type ColorData struct {
	Type  shader.ValueType
	Value *Float32Cell
}

// SizeData is either one size or one size per vertex.
type SizeData struct {
	Type  shader.ValueType
	Value *Float32Cell
}

// RenderObject is an immutable description of one drawable unit.
type RenderObject struct {
	ID        int
	Kind      Kind
	Alpha     float32
	Visible   bool
	DepthMask bool

	Position  *Float32Cell
	IDs       *Float32Cell
	Color     ColorData
	Size      SizeData
	Transform *Float32Cell
	Normal    *Float32Cell // mesh only
	Elements  *valuecell.Cell[[]uint32]

	InstanceCount int
	ElementCount  int
	PositionCount int
}

// PointProps describes a point cloud.
type PointProps struct {
	ObjectID  int
	Alpha     float32
	Visible   bool
	DepthMask bool

	Position  *Float32Cell
	IDs       *Float32Cell
	Color     ColorData
	Size      SizeData
	Transform *Float32Cell

	InstanceCount int
	ElementCount  int
	PositionCount int
}

// NewPointRenderObject validates p and returns a point render object.
func NewPointRenderObject(p PointProps) (*RenderObject, error) {
	o := &RenderObject{
		ID:            p.ObjectID,
		Kind:          PointsKind,
		Alpha:         p.Alpha,
		Visible:       p.Visible,
		DepthMask:     p.DepthMask,
		Position:      p.Position,
		IDs:           p.IDs,
		Color:         p.Color,
		Size:          p.Size,
		Transform:     p.Transform,
		InstanceCount: p.InstanceCount,
		ElementCount:  p.ElementCount,
		PositionCount: p.PositionCount,
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// MeshProps describes a triangle mesh, optionally indexed.
type MeshProps struct {
	PointProps
	Normal   *Float32Cell
	Elements *valuecell.Cell[[]uint32]
}

// NewMeshRenderObject validates p and returns a mesh render object.
// ElementCount counts indices when Elements is set, vertices otherwise.
func NewMeshRenderObject(p MeshProps) (*RenderObject, error) {
	o, err := NewPointRenderObject(p.PointProps)
	if err != nil {
		return nil, err
	}
	o.Kind = MeshKind
	o.Normal = p.Normal
	o.Elements = p.Elements
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRenderObject, fmt.Sprintf(format, args...))
}

// Validate checks that the attribute cells are present and hold enough
// values for the declared counts. Objects built as struct literals should be
// validated before use; the constructors do it already.
func (o *RenderObject) Validate() error {
	if o.Kind != PointsKind && o.Kind != MeshKind {
		return invalid("unknown kind %s", o.Kind)
	}
	if o.Alpha < 0 || o.Alpha > 1 {
		return invalid("alpha %v outside [0, 1]", o.Alpha)
	}
	if o.InstanceCount < 1 {
		return invalid("instance count %d", o.InstanceCount)
	}
	if o.ElementCount < 0 || o.PositionCount < 0 {
		return invalid("negative counts")
	}
	if o.Position == nil || o.IDs == nil || o.Color.Value == nil || o.Size.Value == nil || o.Transform == nil {
		return invalid("object %d is missing an attribute cell", o.ID)
	}
	if n := len(o.Position.Value()); n < 3*o.PositionCount {
		return invalid("%d position values for %d positions", n, o.PositionCount)
	}
	if n := len(o.IDs.Value()); n < o.PositionCount {
		return invalid("%d ids for %d positions", n, o.PositionCount)
	}
	if err := checkPerVertex("color", o.Color.Type, len(o.Color.Value.Value()), 3, o.PositionCount); err != nil {
		return err
	}
	if err := checkPerVertex("size", o.Size.Type, len(o.Size.Value.Value()), 1, o.PositionCount); err != nil {
		return err
	}
	if n := len(o.Transform.Value()); n < 16*o.InstanceCount {
		return invalid("%d transform values for %d instances", n, o.InstanceCount)
	}
	if o.Kind == MeshKind {
		if o.Normal != nil && len(o.Normal.Value()) < 3*o.PositionCount {
			return invalid("%d normal values for %d positions", len(o.Normal.Value()), o.PositionCount)
		}
		if o.Elements != nil && len(o.Elements.Value()) < o.ElementCount {
			return invalid("%d indices for element count %d", len(o.Elements.Value()), o.ElementCount)
		}
	} else if o.ElementCount > o.PositionCount {
		return invalid("element count %d exceeds %d positions", o.ElementCount, o.PositionCount)
	}
	return nil
}

func checkPerVertex(name string, typ shader.ValueType, n, components, positions int) error {
	switch typ {
	case shader.Uniform:
		if n < components {
			return invalid("uniform %s needs %d values, has %d", name, components, n)
		}
	case shader.Attribute:
		if n < components*positions {
			return invalid("%s attribute has %d values for %d positions", name, n, positions)
		}
	default:
		return invalid("unknown %s type %q", name, typ)
	}
	return nil
}

// Instanced reports whether transforms are read per instance from a buffer.
func (o *RenderObject) Instanced() bool { return o.InstanceCount > 1 }

// Transparent reports whether the object is drawn in the blended pass.
func (o *RenderObject) Transparent() bool { return o.Alpha < 1 }

// ShaderConfig returns the shading configuration the object's program is
// generated from.
func (o *RenderObject) ShaderConfig(gles bool) shader.Config {
	prim := shader.Points
	if o.Kind == MeshKind {
		prim = shader.Mesh
	}
	return shader.Config{
		Primitive: prim,
		ColorType: o.Color.Type,
		Instanced: o.Instanced(),
		GLES:      gles,
	}
}

// Attribute is one device-resident array and how it binds to the vertex
// array.
type Attribute struct {
	Name    string
	Cell    *Float32Cell
	Layouts []graphics.AttributeLayout
}

// Attributes lists the arrays that live in their own buffer, in binding
// order: position, id, color, size, then normal and the instance transform
// when present.
func (o *RenderObject) Attributes() []Attribute {
	attrs := []Attribute{
		{Name: "position", Cell: o.Position, Layouts: []graphics.AttributeLayout{{Location: graphics.AttribPosition, Components: 3}}},
		{Name: "id", Cell: o.IDs, Layouts: []graphics.AttributeLayout{{Location: graphics.AttribID, Components: 1}}},
		{Name: "color", Cell: o.Color.Value, Layouts: []graphics.AttributeLayout{o.valueLayout(o.Color.Type, graphics.AttribColor, 3)}},
		{Name: "size", Cell: o.Size.Value, Layouts: []graphics.AttributeLayout{o.valueLayout(o.Size.Type, graphics.AttribSize, 1)}},
	}
	if o.Kind == MeshKind && o.Normal != nil {
		attrs = append(attrs, Attribute{
			Name:    "normal",
			Cell:    o.Normal,
			Layouts: []graphics.AttributeLayout{{Location: graphics.AttribNormal, Components: 3}},
		})
	}
	if o.Instanced() {
		layouts := make([]graphics.AttributeLayout, 4)
		for col := range layouts {
			layouts[col] = graphics.AttributeLayout{
				Location:   graphics.AttribTransform + col,
				Components: 4,
				Stride:     16,
				Offset:     4 * col,
				Divisor:    1,
			}
		}
		attrs = append(attrs, Attribute{Name: "transform", Cell: o.Transform, Layouts: layouts})
	}
	return attrs
}

// A uniform value is bound with a divisor spanning every instance so all
// vertices of all instances read element zero.
func (o *RenderObject) valueLayout(typ shader.ValueType, loc, components int) graphics.AttributeLayout {
	l := graphics.AttributeLayout{Location: loc, Components: components}
	if typ == shader.Uniform {
		l.Divisor = o.InstanceCount
	}
	return l
}

package renderer

import (
	"encoding/binary"
	gomath "math"

	"github.com/spaghettifunk/anima-ar/engine/core"
	"github.com/spaghettifunk/anima-ar/engine/math"
	"github.com/spaghettifunk/anima-ar/engine/renderer/metadata"
)

const (
	// PositionStride is the size of a vertex in the position stream (float3).
	PositionStride = 12
	// GenericStride is the size of a vertex in the generic stream (texcoord
	// float2 followed by normal float3).
	GenericStride = 20
)

type vertex struct {
	position math.Vec3
	texcoord math.Vec2
	normal   math.Vec3
}

// newMeshAsset packs vertices into the position and generic streams and the
// indices into a single uint16 submesh.
func newMeshAsset(name string, vertices []vertex, indices []uint16, material metadata.MaterialProperties) *metadata.MeshAsset {
	positions := make([]byte, len(vertices)*PositionStride)
	generics := make([]byte, len(vertices)*GenericStride)
	for i, v := range vertices {
		p := positions[i*PositionStride:]
		binary.LittleEndian.PutUint32(p[0:], gomath.Float32bits(v.position.X))
		binary.LittleEndian.PutUint32(p[4:], gomath.Float32bits(v.position.Y))
		binary.LittleEndian.PutUint32(p[8:], gomath.Float32bits(v.position.Z))
		g := generics[i*GenericStride:]
		binary.LittleEndian.PutUint32(g[0:], gomath.Float32bits(v.texcoord.X))
		binary.LittleEndian.PutUint32(g[4:], gomath.Float32bits(v.texcoord.Y))
		binary.LittleEndian.PutUint32(g[8:], gomath.Float32bits(v.normal.X))
		binary.LittleEndian.PutUint32(g[12:], gomath.Float32bits(v.normal.Y))
		binary.LittleEndian.PutUint32(g[16:], gomath.Float32bits(v.normal.Z))
	}
	indexBytes := make([]byte, len(indices)*2)
	for i, idx := range indices {
		binary.LittleEndian.PutUint16(indexBytes[i*2:], idx)
	}
	return &metadata.MeshAsset{
		Name:     name,
		Vertices: [][]byte{positions, generics},
		Submeshes: []metadata.SubmeshAsset{{
			Name:      name,
			Indices:   indexBytes,
			IndexType: metadata.INDEX_TYPE_UINT16,
			Material:  material,
		}},
		WorldTransform: math.NewMat4Identity(),
	}
}

/**
 * @brief Generates a box centered on the origin.
 *
 * @param width The width of the box on the x-axis.
 * @param height The height of the box on the y-axis.
 * @param depth The depth of the box on the z-axis.
 * @param name The name of the generated mesh.
 */
func GenerateCubeAsset(width, height, depth float32, name string, material metadata.MaterialProperties) *metadata.MeshAsset {
	if width == 0 {
		core.LogWarn("Width must be nonzero. Defaulting to one.")
		width = 1.0
	}
	if height == 0 {
		core.LogWarn("Height must be nonzero. Defaulting to one.")
		height = 1.0
	}
	if depth == 0 {
		core.LogWarn("Depth must be nonzero. Defaulting to one.")
		depth = 1.0
	}
	hx, hy, hz := width*0.5, height*0.5, depth*0.5

	// Each face: normal, then the two in-plane axes scaled to the half sizes.
	faces := []struct {
		normal, u, v math.Vec3
	}{
		{math.NewVec3(0, 0, 1), math.NewVec3(hx, 0, 0), math.NewVec3(0, hy, 0)},
		{math.NewVec3(0, 0, -1), math.NewVec3(-hx, 0, 0), math.NewVec3(0, hy, 0)},
		{math.NewVec3(-1, 0, 0), math.NewVec3(0, 0, hz), math.NewVec3(0, hy, 0)},
		{math.NewVec3(1, 0, 0), math.NewVec3(0, 0, -hz), math.NewVec3(0, hy, 0)},
		{math.NewVec3(0, -1, 0), math.NewVec3(hx, 0, 0), math.NewVec3(0, 0, hz)},
		{math.NewVec3(0, 1, 0), math.NewVec3(hx, 0, 0), math.NewVec3(0, 0, -hz)},
	}
	halves := math.NewVec3(hx, hy, hz)
	vertices := make([]vertex, 0, 24)
	indices := make([]uint16, 0, 36)
	for i, f := range faces {
		center := f.normal.Mul(halves)
		corners := [4][2]float32{{-1, -1}, {1, 1}, {-1, 1}, {1, -1}}
		for _, c := range corners {
			vertices = append(vertices, vertex{
				position: center.Add(f.u.MulScalar(c[0])).Add(f.v.MulScalar(c[1])),
				texcoord: math.Vec2{X: (c[0] + 1) * 0.5, Y: (c[1] + 1) * 0.5},
				normal:   f.normal,
			})
		}
		base := uint16(i * 4)
		indices = append(indices, base+0, base+1, base+2, base+0, base+3, base+1)
	}
	return newMeshAsset(name, vertices, indices, material)
}

/**
 * @brief Generates a plane on the XZ plane, facing +Y, centered on the origin.
 */
func GeneratePlaneAsset(width, depth float32, name string, material metadata.MaterialProperties) *metadata.MeshAsset {
	if width == 0 {
		core.LogWarn("Width must be nonzero. Defaulting to one.")
		width = 1.0
	}
	if depth == 0 {
		core.LogWarn("Depth must be nonzero. Defaulting to one.")
		depth = 1.0
	}
	hx, hz := width*0.5, depth*0.5
	up := math.NewVec3Up()
	vertices := []vertex{
		{position: math.NewVec3(-hx, 0, hz), texcoord: math.Vec2{X: 0, Y: 0}, normal: up},
		{position: math.NewVec3(hx, 0, -hz), texcoord: math.Vec2{X: 1, Y: 1}, normal: up},
		{position: math.NewVec3(-hx, 0, -hz), texcoord: math.Vec2{X: 0, Y: 1}, normal: up},
		{position: math.NewVec3(hx, 0, hz), texcoord: math.Vec2{X: 1, Y: 0}, normal: up},
	}
	return newMeshAsset(name, vertices, []uint16{0, 1, 2, 0, 3, 1}, material)
}

/**
 * @brief Generates an open tube of radius one running from y=-0.5 to y=0.5.
 *
 * @param segments The number of sides. At least three.
 */
func GenerateCylinderAsset(segments int, name string, material metadata.MaterialProperties) *metadata.MeshAsset {
	if segments < 3 {
		core.LogWarn("segments must be at least three. Defaulting to three.")
		segments = 3
	}
	vertices := make([]vertex, 0, (segments+1)*2)
	indices := make([]uint16, 0, segments*6)
	for i := 0; i <= segments; i++ {
		u := float32(i) / float32(segments)
		angle := u * 2 * math.K_PI
		normal := math.NewVec3(float32(gomath.Cos(float64(angle))), 0, float32(gomath.Sin(float64(angle))))
		vertices = append(vertices,
			vertex{position: normal.Add(math.NewVec3(0, -0.5, 0)), texcoord: math.Vec2{X: u, Y: 0}, normal: normal},
			vertex{position: normal.Add(math.NewVec3(0, 0.5, 0)), texcoord: math.Vec2{X: u, Y: 1}, normal: normal},
		)
	}
	for i := 0; i < segments; i++ {
		b := uint16(i * 2)
		indices = append(indices, b, b+1, b+2, b+2, b+1, b+3)
	}
	return newMeshAsset(name, vertices, indices, material)
}

// Package shader generates the GLSL sources for render objects. Sources are
// a pure function of Config, so objects with equal configurations resolve to
// the same shader and program cache entries.
package shader

import (
	"fmt"
	"strings"

	"github.com/richinsley/molgl/gfx"
	"github.com/richinsley/molgl/graphics"
)

// Primitive selects the shader family.
type Primitive string

const (
	Points Primitive = "points"
	Mesh   Primitive = "mesh"
)

// ValueType says whether a per-object value is one constant or per vertex.
type ValueType string

const (
	Uniform   ValueType = "uniform"
	Attribute ValueType = "attribute"
)

// Config is the shading configuration of a render object.
type Config struct {
	Primitive Primitive
	ColorType ValueType
	Instanced bool
	GLES      bool
}

// ───────────────────────────────── headers ──────────────────────────────────

const headerGL = "#version 410 core\n"

const headerGLES = `#version 300 es
precision highp float;
precision highp int;
`

func header(cfg Config) string {
	var b strings.Builder
	if cfg.GLES {
		b.WriteString(headerGLES)
	} else {
		b.WriteString(headerGL)
	}
	fmt.Fprintf(&b, "#define dPrimitive_%s\n", cfg.Primitive)
	fmt.Fprintf(&b, "#define dColorType_%s\n", cfg.ColorType)
	if cfg.Instanced {
		b.WriteString("#define dInstanced\n")
	}
	return b.String()
}

// ───────────────────────────────── sources ──────────────────────────────────

var vertexBody = fmt.Sprintf(`
uniform mat4 uProjection;
uniform mat4 uView;
uniform float uPixelRatio;

layout(location = %d) in vec3 aPosition;
layout(location = %d) in float aId;
layout(location = %d) in vec3 aColor;
layout(location = %d) in float aSize;
#ifdef dPrimitive_mesh
layout(location = %d) in vec3 aNormal;
out vec3 vNormal;
#endif

#ifdef dInstanced
layout(location = %d) in mat4 aTransform;
#else
uniform mat4 uModel;
#endif

#ifdef dColorType_uniform
flat out vec3 vColor;
#else
out vec3 vColor;
#endif
flat out float vId;

void main() {
#ifdef dInstanced
    mat4 model = aTransform;
#else
    mat4 model = uModel;
#endif
    vColor = aColor;
    vId = aId;
#ifdef dPrimitive_mesh
    vNormal = mat3(uView * model) * aNormal;
#else
    gl_PointSize = aSize * uPixelRatio;
#endif
    gl_Position = uProjection * uView * model * vec4(aPosition, 1.0);
}
`, graphics.AttribPosition, graphics.AttribID, graphics.AttribColor, graphics.AttribSize,
	graphics.AttribNormal, graphics.AttribTransform)

const fragmentBody = `
uniform float uAlpha;

#ifdef dColorType_uniform
flat in vec3 vColor;
#else
in vec3 vColor;
#endif
flat in float vId;
#ifdef dPrimitive_mesh
in vec3 vNormal;
#endif

out vec4 fragColor;

void main() {
#ifdef dPrimitive_mesh
    float d = max(dot(normalize(vNormal), vec3(0.0, 0.0, 1.0)), 0.0);
    fragColor = vec4(vColor * (0.3 + 0.7 * d), uAlpha);
#else
    vec2 c = gl_PointCoord * 2.0 - 1.0;
    if (dot(c, c) > 1.0) discard;
    fragColor = vec4(vColor, uAlpha);
#endif
}
`

// Program returns the vertex/fragment pairing for cfg.
func Program(cfg Config) gfx.ProgramSource {
	h := header(cfg)
	return gfx.ProgramSource{
		Vertex:   h + vertexBody,
		Fragment: h + fragmentBody,
	}
}

package renderer

import _ "embed"

//go:embed shaders/terrain.vert
var terrainVertexShader string

//go:embed shaders/terrain_realism.frag
var terrainRealismFragmentShader string

//go:embed shaders/terrain_data.frag
var terrainDataFragmentShader string

//go:embed shaders/vegetation.vert
var vegetationVertexShader string

//go:embed shaders/vegetation.frag
var vegetationFragmentShader string

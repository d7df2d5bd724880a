package terrain

// HeightAt returns the displaced terrain height at world position (worldX, worldZ)
// using bilinear interpolation between the four surrounding grid vertices.
// Positions outside the grid are clamped to its edge.
func HeightAt(p Params, worldX, worldZ float32) float32 {
	w, h := p.Width, p.Height
	if w < 2 || h < 2 || len(p.Heights) != w*h {
		return 0
	}

	// World -> fractional grid coordinates (inverse of BuildGrid's layout).
	gx := (worldX + float32(w)/2) * float32(w-1) / float32(w)
	gz := (worldZ + float32(h)/2) * float32(h-1) / float32(h)
	gx = clampf(gx, 0, float32(w-1))
	gz = clampf(gz, 0, float32(h-1))

	col := int(gx)
	row := int(gz)
	if col >= w-1 {
		col = w - 2
	}
	if row >= h-1 {
		row = h - 2
	}
	fx := gx - float32(col)
	fz := gz - float32(row)

	at := func(c, r int) float32 { return p.Heights[c+r*w] }

	north := at(col, row)*(1-fx) + at(col+1, row)*fx
	south := at(col, row+1)*(1-fx) + at(col+1, row+1)*fx
	return (north*(1-fz) + south*fz) * p.DispScale
}

func clampf(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

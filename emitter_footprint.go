package main

type pixelOffset struct {
	dx int
	dy int
}

var (
	emitterFootprint  = precomputeDisc(emitterRad)
	listenerFootprint = precomputeDisc(listenerRad)
)

// precomputeDisc lists the pixel offsets covered by a filled disc.
func precomputeDisc(radius int) []pixelOffset {
	footprint := make([]pixelOffset, 0, (2*radius+1)*(2*radius+1))
	r2 := radius * radius
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y <= r2 {
				footprint = append(footprint, pixelOffset{dx: x, dy: y})
			}
		}
	}
	return footprint
}

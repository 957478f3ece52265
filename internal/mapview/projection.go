package mapview

import (
	"math"

	"bus-tracker/internal/geo"

	"github.com/paulmach/orb/project"
)

const (
	tileSize = 256.0
	// Half the circumference of the spherical mercator earth in meters.
	mercatorHalf = math.Pi * 6378137.0
)

// WorldPixel projects p to web mercator pixel space at the given zoom,
// origin at the top-left of the world.
func WorldPixel(p geo.Point, zoom int) Pixel {
	m := project.WGS84.ToMercator(p.Orb())
	size := tileSize * math.Exp2(float64(zoom))
	return Pixel{
		X: (m.X() + mercatorHalf) / (2 * mercatorHalf) * size,
		Y: (mercatorHalf - m.Y()) / (2 * mercatorHalf) * size,
	}
}

// ViewportPixel projects p into a width x height viewport centered on center.
func ViewportPixel(p, center geo.Point, zoom, width, height int) Pixel {
	wp := WorldPixel(p, zoom)
	wc := WorldPixel(center, zoom)
	return Pixel{
		X: wp.X - wc.X + float64(width)/2,
		Y: wp.Y - wc.Y + float64(height)/2,
	}
}

package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	reports "metering-dashboard/internal/reports/domain"
)

const (
	chartWidth  = 1200
	chartHeight = 600
	plotLeft    = 80
	plotRight   = 260
	plotTop     = 50
	plotBottom  = 60
)

var seriesPalette = []color.RGBA{
	{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
	{R: 0x8c, G: 0x56, B: 0x4b, A: 0xff},
	{R: 0xe3, G: 0x77, B: 0xc2, A: 0xff},
	{R: 0x7f, G: 0x7f, B: 0x7f, A: 0xff},
}

type point struct {
	at    time.Time
	value float64
}

type series struct {
	label  string
	points []point
}

// buildSeries makes one line per (meter, matched column), in frame order.
func buildSeries(frame reports.Frame) []series {
	index := make(map[string]int)
	var out []series
	for _, row := range frame.Rows {
		for i, column := range frame.Columns {
			if !column.Matched() || i >= len(row.Cells) || !row.Cells[i].Present {
				continue
			}
			key := row.MeterRef + "\x00" + column.Parameter
			pos, ok := index[key]
			if !ok {
				pos = len(out)
				index[key] = pos
				out = append(out, series{label: fmt.Sprintf("%s %s", row.MeterName, column.Column)})
			}
			out[pos].points = append(out[pos].points, point{at: row.Timestamp, value: row.Cells[i].Value})
		}
	}
	return out
}

func renderImage(frame reports.Frame, meta reports.Metadata) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, chartWidth, chartHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	axis := color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
	grid := color.RGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff}
	x0, y0 := plotLeft, chartHeight-plotBottom
	x1, y1 := chartWidth-plotRight, plotTop

	drawText(img, title(meta), plotLeft, 25, axis)
	if window := windowText(meta); window != "" {
		drawText(img, window, plotLeft, 40, axis)
	}

	all := buildSeries(frame)
	if len(all) == 0 {
		drawText(img, "No readings in window.", plotLeft, chartHeight/2, axis)
		return encodePNG(img)
	}

	minT, maxT := all[0].points[0].at, all[0].points[0].at
	minV, maxV := math.Inf(1), math.Inf(-1)
	for _, s := range all {
		for _, p := range s.points {
			if p.at.Before(minT) {
				minT = p.at
			}
			if p.at.After(maxT) {
				maxT = p.at
			}
			minV = math.Min(minV, p.value)
			maxV = math.Max(maxV, p.value)
		}
	}
	if maxV == minV {
		maxV = minV + 1
	}
	span := maxT.Sub(minT)
	if span <= 0 {
		span = time.Minute
	}
	scaleX := func(t time.Time) int {
		return x0 + int(float64(x1-x0)*float64(t.Sub(minT))/float64(span))
	}
	scaleY := func(v float64) int {
		return y0 - int(float64(y0-y1)*(v-minV)/(maxV-minV))
	}

	const ticks = 5
	for i := 0; i <= ticks; i++ {
		v := minV + (maxV-minV)*float64(i)/ticks
		y := scaleY(v)
		drawLine(img, x0, y, x1, y, grid)
		drawText(img, fmt.Sprintf("%.1f", v), 5, y+4, axis)
	}
	drawLine(img, x0, y0, x1, y0, axis)
	drawLine(img, x0, y0, x0, y1, axis)
	loc := location(meta)
	drawText(img, minT.In(loc).Format(timestampLayout), x0, y0+20, axis)
	drawText(img, maxT.In(loc).Format(timestampLayout), x1-110, y0+20, axis)

	for i, s := range all {
		c := seriesPalette[i%len(seriesPalette)]
		for j := 1; j < len(s.points); j++ {
			a, b := s.points[j-1], s.points[j]
			drawLine(img, scaleX(a.at), scaleY(a.value), scaleX(b.at), scaleY(b.value), c)
		}
		if len(s.points) == 1 {
			x, y := scaleX(s.points[0].at), scaleY(s.points[0].value)
			drawLine(img, x-2, y, x+2, y, c)
		}
		legendY := plotTop + 16*i
		drawLine(img, x1+15, legendY-4, x1+35, legendY-4, c)
		drawText(img, s.label, x1+40, legendY, axis)
	}
	return encodePNG(img)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func drawText(img *image.RGBA, text string, x, y int, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

// drawLine is Bresenham's algorithm.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		img.SetRGBA(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

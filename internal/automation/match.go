package automation

import (
	"image"
	"image/color"
	"math"
	"sort"
)

// grayImage is a dense luminance buffer.
type grayImage struct {
	w, h int
	pix  []float64
}

func toGray(img image.Image) grayImage {
	b := img.Bounds()
	g := grayImage{w: b.Dx(), h: b.Dy(), pix: make([]float64, b.Dx()*b.Dy())}
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			c := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			g.pix[y*g.w+x] = float64(c.Y)
		}
	}
	return g
}

// downsample box-averages f×f blocks. Trailing partial blocks are dropped.
func downsample(g grayImage, f int) grayImage {
	out := grayImage{w: g.w / f, h: g.h / f}
	out.pix = make([]float64, out.w*out.h)
	area := float64(f * f)
	for y := 0; y < out.h; y++ {
		for x := 0; x < out.w; x++ {
			sum := 0.0
			for dy := 0; dy < f; dy++ {
				row := (y*f + dy) * g.w
				for dx := 0; dx < f; dx++ {
					sum += g.pix[row+x*f+dx]
				}
			}
			out.pix[y*out.w+x] = sum / area
		}
	}
	return out
}

type tmplStats struct {
	mean float64
	norm float64 // sqrt of the sum of squared deviations
}

func statsOf(t grayImage) tmplStats {
	n := float64(len(t.pix))
	sum := 0.0
	for _, v := range t.pix {
		sum += v
	}
	mean := sum / n
	sq := 0.0
	for _, v := range t.pix {
		d := v - mean
		sq += d * d
	}
	return tmplStats{mean: mean, norm: math.Sqrt(sq)}
}

// ncc is the normalized cross-correlation of t against s at offset x,y, in [-1,1].
// Flat windows or templates score 0.
func ncc(s, t grayImage, ts tmplStats, x, y int) float64 {
	if ts.norm == 0 {
		return 0
	}
	n := float64(t.w * t.h)
	var sumS, sumSS, sumST float64
	for ty := 0; ty < t.h; ty++ {
		srow := (y+ty)*s.w + x
		trow := ty * t.w
		for tx := 0; tx < t.w; tx++ {
			sv := s.pix[srow+tx]
			tv := t.pix[trow+tx] - ts.mean
			sumS += sv
			sumSS += sv * sv
			sumST += sv * tv
		}
	}
	varS := sumSS - sumS*sumS/n
	if varS <= 1e-9 {
		return 0
	}
	return sumST / (math.Sqrt(varS) * ts.norm)
}

type candidate struct {
	x, y  int
	score float64
}

func scan(s, t grayImage, keep int) []candidate {
	ts := statsOf(t)
	var out []candidate
	for y := 0; y+t.h <= s.h; y++ {
		for x := 0; x+t.w <= s.w; x++ {
			out = append(out, candidate{x: x, y: y, score: ncc(s, t, ts, x, y)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	if len(out) > keep {
		out = out[:keep]
	}
	return out
}

const coarseCandidates = 16

// MatchTemplate finds tmpl inside screen. It returns the centre of the best
// match, its correlation score, and whether the score reached threshold.
// Large templates are first searched on a downsampled grid and then refined
// at full resolution around the best coarse hits.
func MatchTemplate(screen, tmpl image.Image, threshold float64) (Point, float64, bool) {
	s := toGray(screen)
	t := toGray(tmpl)
	if t.w == 0 || t.h == 0 || t.w > s.w || t.h > s.h {
		return Point{}, 0, false
	}

	f := min(4, min(t.w, t.h)/8)
	var best candidate
	if f <= 1 {
		hits := scan(s, t, 1)
		best = hits[0]
	} else {
		coarse := scan(downsample(s, f), downsample(t, f), coarseCandidates)
		ts := statsOf(t)
		best = candidate{score: math.Inf(-1)}
		for _, c := range coarse {
			for y := max(0, c.y*f-f); y <= min(s.h-t.h, c.y*f+f); y++ {
				for x := max(0, c.x*f-f); x <= min(s.w-t.w, c.x*f+f); x++ {
					if score := ncc(s, t, ts, x, y); score > best.score {
						best = candidate{x: x, y: y, score: score}
					}
				}
			}
		}
	}

	origin := screen.Bounds().Min
	p := Point{X: origin.X + best.x + t.w/2, Y: origin.Y + best.y + t.h/2}
	return p, best.score, best.score >= threshold
}

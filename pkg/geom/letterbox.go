package geom

// RemoveLetterbox maps a normalized coordinate from letterboxed
// tensor space back to the unpadded image, given the padding fractions
// produced by PadRoi: x' = (x−l)/(1−l−r), y' = (y−t)/(1−t−b).
func RemoveLetterbox(x, y float64, padding Padding) (float64, float64) {
	x2 := (x - padding.Left) / (1 - padding.Left - padding.Right)
	y2 := (y - padding.Top) / (1 - padding.Top - padding.Bottom)
	return x2, y2
}

// AddLetterbox is the inverse of RemoveLetterbox: it re-introduces the
// padding fractions, mapping an unpadded-image-normalized coordinate back
// into letterboxed tensor space. RemoveLetterbox ∘ AddLetterbox is the
// identity (spec.md §8 round-trip law).
func AddLetterbox(x, y float64, padding Padding) (float64, float64) {
	x2 := x*(1-padding.Left-padding.Right) + padding.Left
	y2 := y*(1-padding.Top-padding.Bottom) + padding.Top
	return x2, y2
}

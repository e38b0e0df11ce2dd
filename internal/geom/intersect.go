package geom

// IntersectSegmentCircle reports whether the segment a-b passes within radius
// of center. Touching the circle counts as an intersection.
func IntersectSegmentCircle(a, b, center Vec2, radius float64) bool {
	return DistanceToSegment2(a, b, center) <= radius*radius
}

// DistanceToSegment2 returns the squared distance from p to the closest point
// of the segment a-b.
func DistanceToSegment2(a, b, p Vec2) float64 {
	ab := b.Sub(a)
	l2 := ab.Len2()
	if l2 == 0 {
		return p.Sub(a).Len2()
	}
	t := p.Sub(a).Dot(ab) / l2
	t = max(0, min(1, t))
	closest := a.Add(ab.Scale(t))
	return p.Sub(closest).Len2()
}

package fuzzy

// MembershipFunction is a trapezoidal fuzzy set with breakpoints
// X0 <= X1 <= X2 <= X3. The ordering is not validated.
type MembershipFunction struct {
	Name           string
	X0, X1, X2, X3 float64
}

func NewMembershipFunction(name string, x0, x1, x2, x3 float64) MembershipFunction {
	return MembershipFunction{Name: name, X0: x0, X1: x1, X2: x2, X3: x3}
}

// Fuzzify returns the degree of membership of x.
func (mf MembershipFunction) Fuzzify(x float64) float64 {
	// A sloped branch is only reachable when its edge has positive width, so a
	// zero-width edge falls through to the plateau and the boundary point
	// itself has degree 1.
	switch {
	case mf.X0 <= x && x < mf.X1:
		return (x - mf.X0) / (mf.X1 - mf.X0)
	case mf.X1 <= x && x <= mf.X2:
		return 1
	case mf.X2 < x && x <= mf.X3:
		return (mf.X3 - x) / (mf.X3 - mf.X2)
	default:
		return 0
	}
}

// Centroid returns the center of gravity of the unclipped trapezoid. A
// function collapsed to a single point has its centroid at that point.
func (mf MembershipFunction) Centroid() float64 {
	a := mf.X2 - mf.X1
	b := mf.X3 - mf.X0
	c := mf.X1 - mf.X0
	if a+b == 0 {
		return mf.X0
	}
	return ((2*a*c)+(a*a)+(c*b)+(a*b)+(b*b))/(3*(a+b)) + mf.X0
}

// Area approximates the area of the trapezoid clipped at the given
// activation height, with the centroid offset standing in for the top width.
// It is not the exact clipped area.
func (mf MembershipFunction) Area(activation float64) float64 {
	return mf.area(mf.Centroid(), activation)
}

func (mf MembershipFunction) area(centroid, h float64) float64 {
	a := centroid - mf.X0
	b := mf.X3 - mf.X0
	return (h * (b + (b - (a * h)))) / 2
}

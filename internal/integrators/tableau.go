package integrators

// Tableau is an embedded explicit Runge-Kutta pair with a continuous
// extension. A has Stages rows (row i holds a_{i,0..i-1}); E weighs the
// Stages+1 slopes (the last is the FSAL slope at the new point) to form the
// error estimate; P maps the same Stages+1 slopes to the coefficients of
// the dense-output polynomial in θ, θ², ...
type Tableau struct {
	Name       string
	Order      int
	ErrorOrder int
	Stages     int

	C []float64
	A [][]float64
	B []float64
	E []float64
	P [][]float64
}

// Dormand-Prince 5(4)
var DormandPrince = &Tableau{
	Name:       "RK45",
	Order:      5,
	ErrorOrder: 4,
	Stages:     6,

	C: []float64{0, 1.0 / 5.0, 3.0 / 10.0, 4.0 / 5.0, 8.0 / 9.0, 1},
	A: [][]float64{
		{},
		{1.0 / 5.0},
		{3.0 / 40.0, 9.0 / 40.0},
		{44.0 / 45.0, -56.0 / 15.0, 32.0 / 9.0},
		{19372.0 / 6561.0, -25360.0 / 2187.0, 64448.0 / 6561.0, -212.0 / 729.0},
		{9017.0 / 3168.0, -355.0 / 33.0, 46732.0 / 5247.0, 49.0 / 176.0, -5103.0 / 18656.0},
	},
	B: []float64{35.0 / 384.0, 0, 500.0 / 1113.0, 125.0 / 192.0, -2187.0 / 6784.0, 11.0 / 84.0},
	E: []float64{-71.0 / 57600.0, 0, 71.0 / 16695.0, -71.0 / 1920.0, 17253.0 / 339200.0, -22.0 / 525.0, 1.0 / 40.0},
	P: [][]float64{
		{1, -8048581381.0 / 2820520608.0, 8663915743.0 / 2820520608.0, -12715105075.0 / 11282082432.0},
		{0, 0, 0, 0},
		{0, 131558114200.0 / 32700410799.0, -68118460800.0 / 10900136933.0, 87487479700.0 / 32700410799.0},
		{0, -1754552775.0 / 470086768.0, 14199869525.0 / 1410260304.0, -10690763975.0 / 1880347072.0},
		{0, 127303824393.0 / 49829197408.0, -318862633887.0 / 49829197408.0, 701980252875.0 / 199316789632.0},
		{0, -282668133.0 / 205662961.0, 2019193451.0 / 616988883.0, -1453857185.0 / 822651844.0},
		{0, 40617522.0 / 29380423.0, -110615467.0 / 29380423.0, 69997945.0 / 29380423.0},
	},
}

// Bogacki-Shampine 3(2)
var BogackiShampine = &Tableau{
	Name:       "RK23",
	Order:      3,
	ErrorOrder: 2,
	Stages:     3,

	C: []float64{0, 1.0 / 2.0, 3.0 / 4.0},
	A: [][]float64{
		{},
		{1.0 / 2.0},
		{0, 3.0 / 4.0},
	},
	B: []float64{2.0 / 9.0, 1.0 / 3.0, 4.0 / 9.0},
	E: []float64{5.0 / 72.0, -1.0 / 12.0, -1.0 / 9.0, 1.0 / 8.0},
	P: [][]float64{
		{1, -4.0 / 3.0, 5.0 / 9.0},
		{0, 1, -2.0 / 3.0},
		{0, 4.0 / 3.0, -8.0 / 9.0},
		{0, -1, 1},
	},
}

// denseWeights returns w_j = Σ_c P[j][c]·θ^(c+1), the weight of slope j in
// the interpolant y(t + θh) = y + h·Σ_j w_j·K_j.
func (tab *Tableau) denseWeights(theta float64, w []float64) {
	for j, row := range tab.P {
		sum := 0.0
		pow := theta
		for _, p := range row {
			sum += p * pow
			pow *= theta
		}
		w[j] = sum
	}
}

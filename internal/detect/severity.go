package detect

// Severity tables are policy, encoded as data so they can be retuned
// without touching rule logic (spec.md §9). Each table is evaluated
// top-to-bottom; the first matching band wins.

// ratioBand maps a ratio (observed/threshold) strictly above `above` to
// severity; both the velocity and the rate-limit tables are built from it.
type ratioBand struct {
	above    float64
	severity int
}

// velocitySeverity bands: r>10 -> 10, r>5 -> 9, r>2 -> 8, else 7
// (spec.md §4.D step 6).
var velocitySeverity = []ratioBand{
	{above: 10, severity: 10},
	{above: 5, severity: 9},
	{above: 2, severity: 8},
}

const velocityFloorSeverity = 7

func severityForVelocityRatio(r float64) int {
	for _, band := range velocitySeverity {
		if r > band.above {
			return band.severity
		}
	}
	return velocityFloorSeverity
}

// rateLimitSeverity bands: r>5 -> 10, r>3 -> 9, r>2 -> 8, else 7
// (spec.md §4.E step 4).
var rateLimitSeverity = []ratioBand{
	{above: 5, severity: 10},
	{above: 3, severity: 9},
	{above: 2, severity: 8},
}

const rateLimitFloorSeverity = 7

func severityForRateLimitRatio(r float64) int {
	for _, band := range rateLimitSeverity {
		if r > band.above {
			return band.severity
		}
	}
	return rateLimitFloorSeverity
}

const (
	severityIPSwitch          = 8
	severitySimultaneousLogin = 10
)

package detect

import "testing"

func TestSeverityForVelocityRatio_Bands(t *testing.T) {
	cases := []struct {
		ratio float64
		want  int
	}{
		{1.5, 7},
		{2.5, 8},
		{6, 9},
		{11, 10},
	}
	for _, c := range cases {
		if got := severityForVelocityRatio(c.ratio); got != c.want {
			t.Errorf("ratio %.1f: want %d, got %d", c.ratio, c.want, got)
		}
	}
}

func TestSeverityForRateLimitRatio_Bands(t *testing.T) {
	cases := []struct {
		ratio float64
		want  int
	}{
		{1.2, 7},
		{2.5, 8},
		{4, 9},
		{6, 10},
	}
	for _, c := range cases {
		if got := severityForRateLimitRatio(c.ratio); got != c.want {
			t.Errorf("ratio %.1f: want %d, got %d", c.ratio, c.want, got)
		}
	}
}

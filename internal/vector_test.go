package internal

import (
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	cases := []struct {
		a, b []float32
		want float32
	}{
		{[]float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{[]float32{1, 0, 0}, []float32{0, 1, 0}, 0},
		{[]float32{1, 0, 0}, []float32{-1, 0, 0}, -1},
		{[]float32{1, 1, 0}, []float32{1, 0, 0}, float32(1 / math.Sqrt2)},
		{[]float32{0, 0, 0}, []float32{1, 0, 0}, 0},
	}

	for _, c := range cases {
		got := Cosine(c.a, c.b)
		if math.Abs(float64(got-c.want)) > 1e-6 {
			t.Errorf("Cosine(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	normalize(v)

	if math.Abs(float64(norm(v)-1)) > 1e-6 {
		t.Errorf("norm after normalize = %v", norm(v))
	}
	if math.Abs(float64(v[0]-0.6)) > 1e-6 || math.Abs(float64(v[1]-0.8)) > 1e-6 {
		t.Errorf("normalize(3,4) = %v", v)
	}

	zero := []float32{0, 0}
	normalize(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("normalize of zero vector = %v", zero)
	}
}

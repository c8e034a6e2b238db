package pip

import "testing"

func TestInitialSize(t *testing.T) {
	tests := []struct {
		name  string
		ratio AspectRatio
		want  Size
	}{
		{name: "default 16:9", ratio: AspectRatio{16, 9}, want: Size{320, 180}},
		{name: "4:3", ratio: AspectRatio{4, 3}, want: Size{240, 180}},
		{name: "square", ratio: AspectRatio{1, 1}, want: Size{180, 180}},
		{name: "portrait 9:16", ratio: AspectRatio{9, 16}, want: Size{101, 180}},
		{name: "very tall", ratio: AspectRatio{1, 1000}, want: Size{1, 180}},
		{name: "very wide is clamped", ratio: AspectRatio{20000000, 1}, want: Size{MaxDimension, 180}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InitialSize(tt.ratio); got != tt.want {
				t.Fatalf("InitialSize(%s)=%s, want %s", tt.ratio, got, tt.want)
			}
		})
	}
}

func TestConstrainSize(t *testing.T) {
	r := AspectRatio{16, 9}

	tests := []struct {
		name string
		in   Size
		want Size
	}{
		{name: "already matching", in: Size{320, 180}, want: Size{320, 180}},
		{name: "too wide keeps height", in: Size{400, 180}, want: Size{320, 180}},
		{name: "grown wider keeps height", in: Size{640, 180}, want: Size{320, 180}},
		{name: "too tall keeps width", in: Size{320, 270}, want: Size{320, 180}},
		{name: "shrunk narrower keeps width", in: Size{160, 180}, want: Size{160, 90}},
		{name: "zero clamps to one", in: Size{0, 0}, want: Size{1, 1}},
		{name: "huge clamps to max", in: Size{100000, 100000}, want: Size{MaxDimension, 9216}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConstrainSize(tt.in, r)
			if got != tt.want {
				t.Fatalf("ConstrainSize(%s)=%s, want %s", tt.in, got, tt.want)
			}
			// constraining is stable
			if again := ConstrainSize(got, r); again != got {
				t.Fatalf("ConstrainSize(%s)=%s, want unchanged", got, again)
			}
		})
	}
}

func TestDerivedDimensionsAreBounded(t *testing.T) {
	wide := AspectRatio{20000000, 1}
	if got := WidthForHeight(MaxDimension, wide); got != MaxDimension {
		t.Fatalf("WidthForHeight=%d, want %d", got, MaxDimension)
	}
	tall := AspectRatio{1, 20000000}
	if got := HeightForWidth(MaxDimension, tall); got != MaxDimension {
		t.Fatalf("HeightForWidth=%d, want %d", got, MaxDimension)
	}
	if got := WidthForHeight(MaxDimension, tall); got != 1 {
		t.Fatalf("WidthForHeight=%d, want 1", got)
	}
}

func TestCenteredOrigin(t *testing.T) {
	got := CenteredOrigin(Size{1920, 1080}, Size{320, 180})
	want := Point{X: 800, Y: 450}
	if got != want {
		t.Fatalf("CenteredOrigin=%+v, want %+v", got, want)
	}
}

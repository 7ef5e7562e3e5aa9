package media_test

import (
	"testing"

	"mediasort/internal/media"
	"mediasort/internal/testutil"
)

func TestPlanner_Plan(t *testing.T) {
	t.Parallel()

	p := media.NewPlanner("/dest", media.MetadataFirst{}, testutil.NewMockFilesystemManager())
	tests := []struct {
		name string
		d    *media.Descriptor
		want string
	}{
		{name: "album", d: image("/src/Holiday/a.jpg", fp('a'), exif("2018:03:04 05:06:07")), want: "/dest/2018/Holiday/a.jpg"},
		{name: "month", d: image("/src/01/a.jpg", fp('a'), exif("2018:03:04 05:06:07")), want: "/dest/2018/3/a.jpg"},
		{name: "source root as album", d: image("/src/a.jpg", fp('a'), exif("2018:03:04 05:06:07")), want: "/dest/2018/src/a.jpg"},
		{name: "path time", d: image("/src/2019/07/a.jpg", fp('a'), nil), want: "/dest/2019/7/a.jpg"},
		{name: "undated album", d: image("/src/Holiday/a.jpg", fp('a'), nil), want: "/dest/(no-date)/Holiday/a.jpg"},
		{name: "undated", d: image("/src/2020-01/a.jpg", fp('a'), nil), want: "/dest/(no-date)/a.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := p.Plan(tt.d); got != tt.want {
				t.Errorf("Plan() = %q, want %q", got, tt.want)
			}
		})
	}

	if got := p.Quarantine(image("/src/2019/07/a.jpg", fp('a'), nil)); got != "/dest/collisions/a.jpg" {
		t.Errorf("Quarantine() = %q", got)
	}
}

func TestMaybeIncrement(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "/d/a.jpg", want: "/d/a (1).jpg"},
		{in: "/d/a (1).jpg", want: "/d/a (2).jpg"},
		{in: "/d/a (9).jpg", want: "/d/a (10).jpg"},
		{in: "/d/a(3).jpg", want: "/d/a (4).jpg"},
		{in: "/d/README", want: "/d/README (1)"},
		{in: "/d/archive.tar.gz", want: "/d/archive.tar (1).gz"},
		{in: "/d (2)/a.jpg", want: "/d (2)/a (1).jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := media.MaybeIncrement(tt.in); got != tt.want {
				t.Errorf("MaybeIncrement(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPlanner_Resolve(t *testing.T) {
	t.Parallel()

	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddFile("/dest/2018/3/a.jpg", []byte("one"))
	fsmgr.AddFile("/dest/2018/3/a (1).jpg", []byte("two"))
	p := media.NewPlanner("/dest", media.MetadataFirst{}, fsmgr)

	tests := map[string]string{
		"/dest/2018/3/a.jpg": "/dest/2018/3/a (2).jpg",
		"/dest/2018/3/b.jpg": "/dest/2018/3/b.jpg",
		"/dest/2019/1/a.jpg": "/dest/2019/1/a.jpg",
	}
	for in, want := range tests {
		got, err := p.Resolve(in)
		if err != nil {
			t.Fatalf("Resolve(%q) error = %v", in, err)
		}
		if got != want {
			t.Errorf("Resolve(%q) = %q, want %q", in, got, want)
		}
	}
}

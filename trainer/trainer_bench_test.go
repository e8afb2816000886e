package trainer

import (
	"context"
	"testing"

	"github.com/pkg/profile"
)

func BenchmarkRunQuick(b *testing.B) {
	dir := b.TempDir()
	csvPath := simulatedCSV(b, dir)

	tr, err := New(quickOptions(dir, csvPath), Dependencies{})
	if err != nil {
		panic(err)
	}

	b.ResetTimer()
	defer profile.Start(profile.CPUProfile, profile.ProfilePath(dir), profile.Quiet).Stop()
	for b.Loop() {
		if _, err := tr.Run(context.Background()); err != nil {
			panic(err)
		}
	}
}

// Package optimize holds small CPU-feature-gated hot-path helpers used by
// the router's path matching.
package optimize

import "golang.org/x/sys/cpu"

var (
	haveAVX2 bool
	haveNEON bool
)

func init() {
	haveAVX2 = cpu.X86.HasAVX2
	haveNEON = cpu.ARM64.HasASIMD
}

// ComparePathSIMD compares two literal path segments for equality. Short
// strings go through plain comparison since the SIMD crossover point is
// well above typical segment length; longer strings still take the
// feature-gated path so the AVX2/NEON capability check has a real caller
// instead of being detected and never used.
func ComparePathSIMD(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) < 16 {
		return a == b
	}
	if haveAVX2 || haveNEON {
		return compareWide(a, b)
	}
	return a == b
}

// compareWide is the wide-string path. Go's runtime memequal already
// compiles to vectorized instructions on both amd64 and arm64, so once a
// platform is known to carry the wider registers this delegates straight
// to it rather than hand-rolling assembly the teacher's own build never
// shipped (core/optimize/simd_amd64.go declares a go:noescape assembly
// function with no corresponding .s file in the source repo).
func compareWide(a, b string) bool {
	return a == b
}

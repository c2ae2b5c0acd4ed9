package pools

import "testing"

func TestBufferPoolGetSizesByTier(t *testing.T) {
	bp := NewBufferPool()

	small := bp.Get(100)
	if cap(*small) < SmallBufferSize {
		t.Fatalf("expected small tier capacity >= %d, got %d", SmallBufferSize, cap(*small))
	}

	medium := bp.Get(SmallBufferSize + 1)
	if cap(*medium) < MediumBufferSize {
		t.Fatalf("expected medium tier capacity >= %d, got %d", MediumBufferSize, cap(*medium))
	}

	large := bp.Get(MediumBufferSize + 1)
	if cap(*large) < LargeBufferSize {
		t.Fatalf("expected large tier capacity >= %d, got %d", LargeBufferSize, cap(*large))
	}
}

func TestBufferPoolPutResetsLength(t *testing.T) {
	bp := NewBufferPool()

	buf := bp.Get(10)
	*buf = append(*buf, []byte("hello")...)
	bp.Put(buf)

	again := bp.Get(10)
	if len(*again) != 0 {
		t.Fatalf("expected recycled buffer to have zero length, got %d", len(*again))
	}
}

func TestBufferPoolPutDropsOversizedBuffer(t *testing.T) {
	bp := NewBufferPool()

	oversized := make([]byte, 0, LargeBufferSize+1)
	bp.Put(&oversized) // should be silently dropped, not panic or corrupt a tier

	buf := bp.Get(MediumBufferSize + 1)
	if cap(*buf) < LargeBufferSize {
		t.Fatalf("expected a fresh large buffer, got capacity %d", cap(*buf))
	}
}

func TestBufferPoolStatsCountsGets(t *testing.T) {
	bp := NewBufferPool()

	bp.Get(100)
	bp.Get(SmallBufferSize + 1)
	bp.Get(MediumBufferSize + 1)

	stats := bp.Stats()
	if stats.TotalGets != 3 {
		t.Fatalf("expected 3 total gets, got %d", stats.TotalGets)
	}
	if stats.SmallHits != 1 || stats.MediumHits != 1 || stats.LargeHits != 1 {
		t.Fatalf("expected one hit per tier, got %+v", stats)
	}
	if stats.HitRate != 1.0 {
		t.Fatalf("expected hit rate 1.0, got %f", stats.HitRate)
	}
}

func TestAcquireReleaseBufferRoundTrip(t *testing.T) {
	buf := AcquireBuffer(100)
	*buf = append(*buf, 1, 2, 3)
	ReleaseBuffer(buf)

	again := AcquireBuffer(100)
	if len(*again) != 0 {
		t.Fatalf("expected zero length after release, got %d", len(*again))
	}
}

package pools

import (
	"sync"
	"sync/atomic"
)

// Tiered capacities for BufferPool, sized for a status line + headers
// (Small), a typical JSON body (Medium), or a larger fixed body (Large).
const (
	SmallBufferSize  = 2 * 1024
	MediumBufferSize = 8 * 1024
	LargeBufferSize  = 32 * 1024
)

// BufferPool recycles []byte scratch space across three size tiers,
// avoiding a fresh allocation per response on the write path.
type BufferPool struct {
	small  sync.Pool
	medium sync.Pool
	large  sync.Pool

	smallHits  atomic.Uint64
	mediumHits atomic.Uint64
	largeHits  atomic.Uint64
	totalGets  atomic.Uint64
}

// NewBufferPool creates an empty tiered pool.
func NewBufferPool() *BufferPool {
	return &BufferPool{
		small:  sync.Pool{New: func() any { b := make([]byte, 0, SmallBufferSize); return &b }},
		medium: sync.Pool{New: func() any { b := make([]byte, 0, MediumBufferSize); return &b }},
		large:  sync.Pool{New: func() any { b := make([]byte, 0, LargeBufferSize); return &b }},
	}
}

// Get acquires a zero-length buffer from the smallest tier whose capacity
// fits estimatedSize; estimates above LargeBufferSize get a Large buffer,
// which grows on append.
func (bp *BufferPool) Get(estimatedSize int) *[]byte {
	bp.totalGets.Add(1)
	switch {
	case estimatedSize <= SmallBufferSize:
		bp.smallHits.Add(1)
		return bp.small.Get().(*[]byte)
	case estimatedSize <= MediumBufferSize:
		bp.mediumHits.Add(1)
		return bp.medium.Get().(*[]byte)
	default:
		bp.largeHits.Add(1)
		return bp.large.Get().(*[]byte)
	}
}

// Put returns buf to its tier, or drops it if it grew past LargeBufferSize.
func (bp *BufferPool) Put(buf *[]byte) {
	if buf == nil {
		return
	}
	*buf = (*buf)[:0]

	switch c := cap(*buf); {
	case c <= SmallBufferSize:
		bp.small.Put(buf)
	case c <= MediumBufferSize:
		bp.medium.Put(buf)
	case c <= LargeBufferSize:
		bp.large.Put(buf)
	}
}

// Stats reports pool hit counters by tier.
func (bp *BufferPool) Stats() BufferStats {
	total := bp.totalGets.Load()
	var hitRate float64
	if total > 0 {
		hitRate = float64(bp.smallHits.Load()+bp.mediumHits.Load()+bp.largeHits.Load()) / float64(total)
	}
	return BufferStats{
		SmallHits:  bp.smallHits.Load(),
		MediumHits: bp.mediumHits.Load(),
		LargeHits:  bp.largeHits.Load(),
		TotalGets:  total,
		HitRate:    hitRate,
	}
}

type BufferStats struct {
	SmallHits  uint64
	MediumHits uint64
	LargeHits  uint64
	TotalGets  uint64
	HitRate    float64
}

var globalBufferPool = NewBufferPool()

// AcquireBuffer gets a buffer from the process-wide pool.
func AcquireBuffer(estimatedSize int) *[]byte { return globalBufferPool.Get(estimatedSize) }

// ReleaseBuffer returns buf to the process-wide pool.
func ReleaseBuffer(buf *[]byte) { globalBufferPool.Put(buf) }

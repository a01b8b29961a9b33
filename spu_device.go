// spu_device.go - SPU sample generation loop and output ring
//
// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/rvfm
// License: GPLv3 or later

/*
SPUDevice runs the single sample-generation loop spec §4.8 describes: every
tick it advances all enabled voices by one sample period, sums their
output into the output ring, and increments the sample counter that
wait_sample_counter/reset_sample_counter observe and set. The ring-buffer
handoff to the host audio backend is grounded on the teacher's
audio_chip.go/audio_backend_oto.go split between a generator and a puller
that drains a ring by sample.
*/

package main

import (
	"context"
	"sync"
	"time"
)

const (
	NumSPUVoices  = 16
	spuSampleRate = 44100
	spuRingSize   = 1 << 14 // power of two for cheap modulo masking
)

// sampleRing is a fixed-capacity circular buffer of generated samples,
// written by the SPU's generation loop and drained by the audio backend.
// When the ring is full, a push drops the oldest unread sample rather than
// blocking generation,
// matching the teacher's behaviour of letting audio underrun rather than
// stall command-list processing.
type sampleRing struct {
	mu   sync.Mutex
	buf  [spuRingSize]float32
	head int // next write index
	tail int // next read index
	size int // number of unread samples
}

func (r *sampleRing) push(v float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size == spuRingSize {
		r.tail = (r.tail + 1) % spuRingSize
		r.size--
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % spuRingSize
	r.size++
}

func (r *sampleRing) pop() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size == 0 {
		return 0
	}
	v := r.buf[r.tail]
	r.tail = (r.tail + 1) % spuRingSize
	r.size--
	return v
}

type SPUDevice struct {
	mu      sync.Mutex
	voices  [NumSPUVoices]*Voice
	counter uint32
	waiters []spuWaiter

	ring *sampleRing

	handler *SPUCommandHandler
	engines [NumSPUQueues]*CommandListEngine
}

type spuWaiter struct {
	target uint32
	done   chan struct{}
}

func NewSPUDevice(mem *MemoryMap, ic *InterruptController, logf func(string, ...any)) *SPUDevice {
	d := &SPUDevice{ring: &sampleRing{}}
	for i := range d.voices {
		d.voices[i] = NewVoice()
	}
	d.handler = NewSPUCommandHandler(d, logf)
	for i := 0; i < NumSPUQueues; i++ {
		d.engines[i] = NewCommandListEngine("spu", mem, ic, IntSPU, d.handler, logf)
	}

	mem.MapDevice(&DeviceRegion{
		Name:       "spu",
		Start:      SPUBase,
		End:        SPUBase + SPUWindowSize,
		WidthsMask: 1 << 4,
		OnRead:     d.onRead,
		OnWrite:    d.onWrite,
	})
	return d
}

func (d *SPUDevice) onRead(addr uint32, width int) (uint32, error) {
	return 0, nil
}

func (d *SPUDevice) onWrite(addr uint32, width int, val uint32) error {
	if addr >= SPUQueueBase && addr < SPUQueueBase+uint32(NumSPUQueues)*4 {
		q := (addr - SPUQueueBase) / 4
		d.engines[q].Submit(val)
		return nil
	}
	return nil
}

// Run starts the SPU's queue engines and its sample generation ticker.
// The ticker and every queue engine select on ctx.Done and return promptly
// when it's cancelled.
func (d *SPUDevice) Run(ctx context.Context) error {
	errs := make(chan error, NumSPUQueues+1)
	for _, e := range d.engines {
		go func(e *CommandListEngine) { errs <- e.Run(ctx) }(e)
	}
	go func() { errs <- d.runSampleLoop(ctx) }()

	var first error
	for i := 0; i < NumSPUQueues+1; i++ {
		if err := <-errs; err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (d *SPUDevice) runSampleLoop(ctx context.Context) error {
	dt := float32(1.0 / spuSampleRate)
	period := time.Second / spuSampleRate
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.generateSample(dt)
		}
	}
}

func (d *SPUDevice) generateSample(dt float32) {
	d.mu.Lock()
	var mix float32
	for _, v := range d.voices {
		if s, ok := v.Sample(dt); ok {
			mix += s
		}
	}
	d.counter++
	counter := d.counter
	var woken []spuWaiter
	remaining := d.waiters[:0]
	for _, w := range d.waiters {
		if counter >= w.target {
			woken = append(woken, w)
		} else {
			remaining = append(remaining, w)
		}
	}
	d.waiters = remaining
	d.mu.Unlock()

	d.ring.push(mix)
	for _, w := range woken {
		close(w.done)
	}
}

// waitSampleCounter blocks the calling goroutine (the SPU queue's own
// consumer goroutine) until the sample counter reaches at least target,
// implementing wait_sample_counter (spec §4.8). Returning immediately when
// the counter has already passed target avoids ever blocking the emulator
// on a condition that already holds (spec §8 edge case).
func (d *SPUDevice) waitSampleCounter(target uint32) {
	d.mu.Lock()
	if d.counter >= target {
		d.mu.Unlock()
		return
	}
	done := make(chan struct{})
	d.waiters = append(d.waiters, spuWaiter{target: target, done: done})
	d.mu.Unlock()
	<-done
}

func (d *SPUDevice) resetSampleCounter(v uint32) {
	d.mu.Lock()
	d.counter = v
	d.mu.Unlock()
}

// PullSample drains one generated sample for the audio backend; called
// from the oto callback goroutine, never from the generation loop.
func (d *SPUDevice) PullSample() float32 {
	return d.ring.pop()
}

// withVoice runs fn against voice id while holding the device lock, so that
// command-handler mutations never race the sample generation loop's reads
// of the same voice (both access Voice fields directly, with d.mu as the
// only guard).
func (d *SPUDevice) withVoice(id int, fn func(*Voice)) bool {
	if id < 0 || id >= NumSPUVoices {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.voices[id])
	return true
}

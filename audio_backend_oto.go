//go:build !headless

// audio_backend_oto.go - oto/v3 audio output, draining the SPU's sample ring
//
// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/rvfm
// License: GPLv3 or later

/*
OtoPlayer adapts SPUDevice.PullSample to oto/v3's io.Reader-shaped Player,
the same split the teacher's audio_backend_oto.go uses against SoundChip:
oto calls Read on its own goroutine, and Read pulls one float32 sample at a
time out of the generator's ring rather than generating audio synchronously
on the callback goroutine.
*/

package main

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/ebitengine/oto/v3"
)

type OtoPlayer struct {
	ctx       *oto.Context
	player    *oto.Player
	spu       atomic.Pointer[SPUDevice]
	sampleBuf []float32
	started   bool
	mutex     sync.Mutex
}

func NewOtoPlayer(sampleRate int) (*OtoPlayer, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   4,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready
	return &OtoPlayer{ctx: ctx}, nil
}

func (op *OtoPlayer) SetupPlayer(spu *SPUDevice) {
	op.mutex.Lock()
	defer op.mutex.Unlock()

	op.spu.Store(spu)
	op.player = op.ctx.NewPlayer(op)
	op.sampleBuf = make([]float32, 4096)
}

func (op *OtoPlayer) Read(p []byte) (n int, err error) {
	spu := op.spu.Load()
	if spu == nil {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	numSamples := len(p) / 4
	if numSamples == 0 {
		return 0, nil
	}
	if len(op.sampleBuf) < numSamples {
		op.sampleBuf = make([]float32, numSamples)
	}
	samples := op.sampleBuf[:numSamples]
	for i := 0; i < numSamples; i++ {
		samples[i] = spu.PullSample()
	}

	byteLen := numSamples * 4
	copy(p, (*[1 << 30]byte)(unsafe.Pointer(&samples[0]))[:byteLen])
	return byteLen, nil
}

func (op *OtoPlayer) Start() {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	if !op.started && op.player != nil {
		op.player.Play()
		op.started = true
	}
}

func (op *OtoPlayer) Stop() {
	op.mutex.Lock()
	defer op.mutex.Unlock()
	if op.started && op.player != nil {
		op.player.Close()
		op.started = false
	}
}

func (op *OtoPlayer) Close() {
	op.Stop()
	op.mutex.Lock()
	defer op.mutex.Unlock()
	if op.player != nil {
		op.player.Close()
		op.player = nil
	}
}

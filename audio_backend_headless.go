//go:build headless

// audio_backend_headless.go - no-op audio backend for headless test runs
//
// (c) 2024-2026 Zayn Otley
// https://github.com/intuitionamiga/rvfm
// License: GPLv3 or later

package main

type OtoPlayer struct {
	started bool
	spu     *SPUDevice
}

func NewOtoPlayer(sampleRate int) (*OtoPlayer, error) {
	return &OtoPlayer{}, nil
}

func (op *OtoPlayer) SetupPlayer(spu *SPUDevice) {
	op.spu = spu
}

func (op *OtoPlayer) Read(p []byte) (n int, err error) {
	return len(p), nil
}

func (op *OtoPlayer) Start() { op.started = true }
func (op *OtoPlayer) Stop()  { op.started = false }
func (op *OtoPlayer) Close() { op.started = false }

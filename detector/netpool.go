package detector

import (
	"fmt"
	"gocv.io/x/gocv"
	"os"
	"sync"
)

// NetPool holds multiple OpenCV DNN instances of the same Model so several
// sessions can run inference concurrently
type NetPool struct {
	// pool of networks
	nets chan *gocv.Net
	// size of pool
	size  int
	close sync.Once
}

// NewNetPool loads the ONNX model file size times and sets the preferred
// backend and target on each instance, eg: "default", "opencv", "cuda" and
// "cpu", "cuda", "cuda_fp16"
func NewNetPool(size int, modelFile, backend, target string) (*NetPool, error) {

	if size < 1 {
		size = 1
	}

	if _, err := os.Stat(modelFile); err != nil {
		return nil, fmt.Errorf("error opening model file: %w", err)
	}

	p := &NetPool{
		nets: make(chan *gocv.Net, size),
		size: size,
	}

	for i := 0; i < size; i++ {
		net, err := loadNet(modelFile, backend, target)

		if err != nil {
			// close any instances that may have been created before receiving
			// the error
			p.Close()
			return nil, err
		}

		// attach to pool
		p.Return(net)
	}

	return p, nil
}

// loadNet reads a single network instance
func loadNet(modelFile, backend, target string) (*gocv.Net, error) {

	net := gocv.ReadNetFromONNX(modelFile)

	if net.Empty() {
		net.Close()
		return nil, fmt.Errorf("error reading network from %s", modelFile)
	}

	if backend != "" {
		if err := net.SetPreferableBackend(gocv.ParseNetBackend(backend)); err != nil {
			net.Close()
			return nil, fmt.Errorf("error setting backend %s: %w", backend, err)
		}
	}

	if target != "" {
		if err := net.SetPreferableTarget(gocv.ParseNetTarget(target)); err != nil {
			net.Close()
			return nil, fmt.Errorf("error setting target %s: %w", target, err)
		}
	}

	return &net, nil
}

// Get a network from the pool, blocking until one is free
func (p *NetPool) Get() *gocv.Net {
	return <-p.nets
}

// Return a network to the pool
func (p *NetPool) Return(net *gocv.Net) {
	select {
	case p.nets <- net:
	default:
		// pool is full or closed
	}
}

// Size returns the number of networks in the pool
func (p *NetPool) Size() int {
	return p.size
}

// Close the pool and all networks in it
func (p *NetPool) Close() {
	p.close.Do(func() {
		// close channel
		close(p.nets)

		// close all networks
		for next := range p.nets {
			_ = next.Close()
		}
	})
}

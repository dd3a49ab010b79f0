//go:build !linux

package host

func allocPinned(elems int) (*pinned, error) {
	return &pinned{data: make([]float32, elems)}, nil
}

func freePinned(p *pinned) error {
	p.data = nil
	return nil
}

//go:build !cuda

package backend

func Has(name string) bool {
	return name == Host
}

//go:build !unix

package core

func isInUse(err error) bool {
	return false
}

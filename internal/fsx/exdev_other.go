//go:build !unix

package fsx

// Windows reports cross-volume moves differently; os.Rename there already
// copies when MoveFileEx allows it.
func isEXDEV(err error) bool { return false }

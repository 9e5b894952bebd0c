//go:build !amd64 && !arm64

package hostcpu

func detect(*Features) {}

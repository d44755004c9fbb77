//go:build !davdebug

package copier

const defaultInitialSize = 64 << 10

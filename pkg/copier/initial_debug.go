//go:build davdebug

package copier

// Debug builds start small so growth is exercised by ordinary uploads.
const defaultInitialSize = 4 << 10

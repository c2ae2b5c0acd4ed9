//go:build !darwin

package sock

const isDarwinOrBSD = false

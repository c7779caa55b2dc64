package rtc

import (
	"sync"
)

var mtuPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, MTU)
		return &b
	},
}

// GetBuffer returns an MTU sized buffer from the shared pool.
func GetBuffer() *[]byte {
	return mtuPool.Get().(*[]byte)
}

// PutBuffer hands a buffer obtained by GetBuffer back to the pool.
func PutBuffer(b *[]byte) {
	if b == nil || cap(*b) < MTU {
		return
	}
	*b = (*b)[:MTU]
	mtuPool.Put(b)
}

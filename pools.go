package docstore

import "sync"

var keyBytesPool = &sync.Pool{
	New: func() any {
		return make([]byte, 0, 1024)
	},
}

func releaseKeyBytes(b []byte) {
	keyBytesPool.Put(b[:0])
}

var valueBytesPool = &sync.Pool{
	New: func() any {
		return make([]byte, 0, 65536)
	},
}

func releaseValueBytes(b []byte) {
	valueBytesPool.Put(b[:0])
}

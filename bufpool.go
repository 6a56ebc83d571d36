package flatmsg

import (
	"bytes"
	"sync"
)

// bytesBufPool reuses buffers for numeric scanning and for reading single records.
var bytesBufPool = sync.Pool{
	New: func() any {
		// Large enough for typical batch records without growing.
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

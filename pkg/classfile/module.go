package classfile

import (
	"encoding/binary"
	"fmt"
)

// StripModuleVersions returns a copy of a Module attribute payload with the
// module version and every requires version cleared.
func StripModuleVersions(data []byte) ([]byte, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("classfile: module attribute too short (%d bytes)", len(data))
	}
	out := make([]byte, len(data))
	copy(out, data)
	binary.BigEndian.PutUint16(out[4:], 0)

	n := int(binary.BigEndian.Uint16(out[6:]))
	if len(out) < 8+6*n {
		return nil, fmt.Errorf("classfile: module attribute truncated in requires table")
	}
	for i := 0; i < n; i++ {
		binary.BigEndian.PutUint16(out[8+6*i+4:], 0)
	}
	return out, nil
}

// Package wire defines the snapshot format used to export the state of a
// scene and the hook tables bound to it. Snapshots are CBOR encoded in
// canonical mode so that equal states encode to equal bytes.
package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Version is written into every snapshot.
const Version = 1

// Snapshot is a point-in-time view of a scene.
type Snapshot struct {
	Version    uint8            `cbor:"1,keyasint"`
	Scene      string           `cbor:"2,keyasint"`
	Frame      uint64           `cbor:"3,keyasint"`
	Objects    []ObjectState    `cbor:"4,keyasint,omitempty"`
	HookTables []HookTableState `cbor:"5,keyasint,omitempty"`
}

// ObjectState describes one object and its components in attachment order.
type ObjectState struct {
	ID         string           `cbor:"1,keyasint"`
	Name       string           `cbor:"2,keyasint"`
	Active     bool             `cbor:"3,keyasint"`
	Components []ComponentState `cbor:"4,keyasint,omitempty"`
}

// ComponentState describes one attached component. Proxy is set only for
// components that stand in for a dynamic instance.
type ComponentState struct {
	Type    string      `cbor:"1,keyasint"`
	Enabled bool        `cbor:"2,keyasint"`
	Proxy   *ProxyState `cbor:"3,keyasint,omitempty"`
}

// ProxyState describes a proxy's binding.
type ProxyState struct {
	State  string `cbor:"1,keyasint"`
	Domain uint32 `cbor:"2,keyasint,omitempty"`
	TypeID uint32 `cbor:"3,keyasint,omitempty"`
	Class  string `cbor:"4,keyasint,omitempty"`
}

// HookTableState lists the lifecycle hooks resolved for one dynamic type.
type HookTableState struct {
	Domain uint32   `cbor:"1,keyasint"`
	TypeID uint32   `cbor:"2,keyasint"`
	Class  string   `cbor:"3,keyasint"`
	Hooks  []string `cbor:"4,keyasint,omitempty"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalSnapshot serializes a Snapshot to CBOR bytes.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalSnapshot deserializes a Snapshot from CBOR bytes.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("wire: unmarshal snapshot: %w", err)
	}
	if s.Version != Version {
		return nil, fmt.Errorf("wire: unsupported snapshot version %d", s.Version)
	}
	return &s, nil
}

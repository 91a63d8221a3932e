package core

import "fmt"

// ProtocolVersion is a monotone (major, minor, patch) triple gating genesis
// and upgrade operations. A new protocol version must never be lower than
// the currently active one.
type ProtocolVersion struct {
	Major uint32
	Minor uint32
	Patch uint32
}

func NewProtocolVersion(major, minor, patch uint32) ProtocolVersion {
	return ProtocolVersion{Major: major, Minor: minor, Patch: patch}
}

func (v ProtocolVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or 1 if v is less than, equal to, or greater than o.
func (v ProtocolVersion) Compare(o ProtocolVersion) int {
	switch {
	case v.Major != o.Major:
		return cmpUint32(v.Major, o.Major)
	case v.Minor != o.Minor:
		return cmpUint32(v.Minor, o.Minor)
	default:
		return cmpUint32(v.Patch, o.Patch)
	}
}

func cmpUint32(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (v ProtocolVersion) LessThan(o ProtocolVersion) bool { return v.Compare(o) < 0 }

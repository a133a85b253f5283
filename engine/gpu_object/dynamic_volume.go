package gpu_object

import (
	"fmt"
	"slices"
)

// UnitID identifies a unit of a DynamicVolume. IDs are never reused by the same volume.
type UnitID uint32

// DynamicVolume is a volume whose units are added and removed at runtime. Every change of the unit count
// is a resize: the allocation and the points buffer are recreated and fully uploaded. The bin of a hit is
// the unit index, UnitAt maps it back to an ID.
type DynamicVolume struct {
	volumeCore
	ids    []UnitID
	nextID UnitID
}

var _ GPUObject = &DynamicVolume{}

// NewDynamicVolume creates an empty dynamic volume.
//
// Parameters:
//   - host: the host providing the device and allocations
//   - label: a debug label, defaults to the type name
//
// Returns:
//   - *DynamicVolume: the volume
//   - error: an error if no allocation could be made
func NewDynamicVolume(host Host, label string) (*DynamicVolume, error) {
	v := &DynamicVolume{nextID: 1}
	v.init(host, v, KindDynamicVolume, label)
	if err := v.setUnits(nil); err != nil {
		return nil, err
	}
	return v, nil
}

// AddUnit appends a unit and returns its ID.
func (v *DynamicVolume) AddUnit(u VolumeUnit) (UnitID, error) {
	if v.released {
		return 0, ErrReleased
	}
	units := append(slices.Clone(v.units), u)
	if err := v.setUnits(units); err != nil {
		return 0, err
	}
	id := v.nextID
	v.nextID++
	v.ids = append(v.ids, id)
	return id, nil
}

// RemoveUnit removes a unit. Unknown IDs are ignored and reported as false.
func (v *DynamicVolume) RemoveUnit(id UnitID) (bool, error) {
	i := v.IndexOf(id)
	if i < 0 {
		return false, nil
	}
	units := slices.Delete(slices.Clone(v.units), i, i+1)
	if err := v.setUnits(units); err != nil {
		return false, err
	}
	v.ids = slices.Delete(v.ids, i, i+1)
	return true, nil
}

// UpdateUnit replaces the unit with the given ID in place. The unit count does not change, so only the
// properties and the points are uploaded again.
func (v *DynamicVolume) UpdateUnit(id UnitID, u VolumeUnit) error {
	i := v.IndexOf(id)
	if i < 0 {
		return fmt.Errorf("%s: unknown unit %d", v.label, id)
	}
	units := slices.Clone(v.units)
	units[i] = u
	return v.setUnits(units)
}

// Unit returns the unit with the given ID.
func (v *DynamicVolume) Unit(id UnitID) (VolumeUnit, bool) {
	i := v.IndexOf(id)
	if i < 0 {
		return VolumeUnit{}, false
	}
	return v.units[i], true
}

// IndexOf returns the current index of a unit, or -1.
func (v *DynamicVolume) IndexOf(id UnitID) int {
	return slices.Index(v.ids, id)
}

// UnitAt returns the ID of the unit at an index, such as the bin of an intersection.
func (v *DynamicVolume) UnitAt(i int) (UnitID, bool) {
	if i < 0 || i >= len(v.ids) {
		return 0, false
	}
	return v.ids[i], true
}

func (v *DynamicVolume) UnitIDs() []UnitID {
	return slices.Clone(v.ids)
}

func (v *DynamicVolume) Len() int {
	return len(v.units)
}

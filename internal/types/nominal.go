package types

import (
	"fmt"

	"fortio.org/safecast"
)

// StructField describes a single field inside a nominal struct type.
type StructField struct {
	Name string
	Type TypeID
}

// StructInfo stores metadata for a struct type.
type StructInfo struct {
	Name   string
	Fields []StructField
}

// EnumVariant describes a single variant of an enum type. Payload is the type
// of the variant's data, or NoTypeID for a unit variant.
type EnumVariant struct {
	Name    string
	Payload TypeID
}

// EnumInfo stores metadata for an enum type.
type EnumInfo struct {
	Name     string
	Variants []EnumVariant
}

// RegisterStruct allocates a nominal struct type slot and returns its TypeID.
func (in *Interner) RegisterStruct(name string) TypeID {
	slot := in.appendStructInfo(StructInfo{Name: name})
	return in.internRaw(Type{Kind: KindStruct, Payload: slot})
}

// SetStructFields stores the resolved field descriptors for the struct type.
func (in *Interner) SetStructFields(typeID TypeID, fields []StructField) {
	info := in.structInfo(typeID)
	if info == nil {
		return
	}
	info.Fields = append([]StructField(nil), fields...)
}

// StructInfo returns metadata for the provided struct TypeID.
func (in *Interner) StructInfo(typeID TypeID) (*StructInfo, bool) {
	info := in.structInfo(typeID)
	if info == nil {
		return nil, false
	}
	return info, true
}

// StructFields returns a copy of struct fields for the TypeID.
func (in *Interner) StructFields(typeID TypeID) []StructField {
	info := in.structInfo(typeID)
	if info == nil || len(info.Fields) == 0 {
		return nil
	}
	return append([]StructField(nil), info.Fields...)
}

// RegisterEnum allocates a nominal enum type slot and returns its TypeID.
func (in *Interner) RegisterEnum(name string) TypeID {
	slot := in.appendEnumInfo(EnumInfo{Name: name})
	return in.internRaw(Type{Kind: KindEnum, Payload: slot})
}

// SetEnumVariants stores the resolved variants for the enum type.
func (in *Interner) SetEnumVariants(typeID TypeID, variants []EnumVariant) {
	info := in.enumInfo(typeID)
	if info == nil {
		return
	}
	info.Variants = append([]EnumVariant(nil), variants...)
}

// EnumInfo returns metadata for the provided enum TypeID.
func (in *Interner) EnumInfo(typeID TypeID) (*EnumInfo, bool) {
	info := in.enumInfo(typeID)
	if info == nil {
		return nil, false
	}
	return info, true
}

// EnumVariant returns the named variant of the enum, if present.
func (in *Interner) EnumVariant(typeID TypeID, name string) (EnumVariant, bool) {
	info := in.enumInfo(typeID)
	if info == nil {
		return EnumVariant{}, false
	}
	for _, v := range info.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return EnumVariant{}, false
}

func (in *Interner) structInfo(typeID TypeID) *StructInfo {
	if typeID == NoTypeID {
		return nil
	}
	t, ok := in.Lookup(typeID)
	if !ok || t.Kind != KindStruct {
		return nil
	}
	if t.Payload == 0 || int(t.Payload) >= len(in.structs) {
		return nil
	}
	return &in.structs[t.Payload]
}

func (in *Interner) enumInfo(typeID TypeID) *EnumInfo {
	if typeID == NoTypeID {
		return nil
	}
	t, ok := in.Lookup(typeID)
	if !ok || t.Kind != KindEnum {
		return nil
	}
	if t.Payload == 0 || int(t.Payload) >= len(in.enums) {
		return nil
	}
	return &in.enums[t.Payload]
}

func (in *Interner) appendStructInfo(info StructInfo) uint32 {
	slot, err := safecast.Conv[uint32](len(in.structs))
	if err != nil {
		panic(fmt.Errorf("len(structs) overflow: %w", err))
	}
	in.structs = append(in.structs, info)
	return slot
}

func (in *Interner) appendEnumInfo(info EnumInfo) uint32 {
	slot, err := safecast.Conv[uint32](len(in.enums))
	if err != nil {
		panic(fmt.Errorf("len(enums) overflow: %w", err))
	}
	in.enums = append(in.enums, info)
	return slot
}

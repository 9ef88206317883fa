package network

import (
	"fmt"
	"strings"

	"github.com/asaskevich/govalidator"
)

// IdentifierSpec is the serialized form of an Identifier.
type IdentifierSpec struct {
	Type   IdentifierType   `json:"type" yaml:"type"`
	Value  string           `json:"value,omitempty" yaml:"value,omitempty"`
	Prefix int              `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	All    []IdentifierSpec `json:"all,omitempty" yaml:"all,omitempty"`
}

// ParseIdentifier validates spec and builds the identifier it describes.
// Subnets are given either as CIDR notation in Value or as Value plus Prefix.
func ParseIdentifier(spec IdentifierSpec) (Identifier, error) {
	value := strings.TrimSpace(spec.Value)

	switch spec.Type {
	case TypeName, TypeInterface, TypeOverlay:
		if value == "" {
			return nil, fmt.Errorf("%w: empty %s", ErrInvalidIdentifier, spec.Type)
		}
		switch spec.Type {
		case TypeName:
			// SSIDs are compared verbatim
			return Name(spec.Value), nil
		case TypeInterface:
			return Interface(value), nil
		}
		return Overlay(value), nil

	case TypeHardware:
		if !govalidator.IsMAC(NormalizeMAC(value)) {
			return nil, fmt.Errorf("%w: hardware address %q", ErrInvalidIdentifier, spec.Value)
		}
		return HardwareAddr(value), nil

	case TypeGateway:
		if !govalidator.IsIP(value) {
			return nil, fmt.Errorf("%w: gateway %q", ErrInvalidIdentifier, spec.Value)
		}
		return Gateway(value), nil

	case TypeSubnet:
		if strings.Contains(value, "/") {
			if !govalidator.IsCIDR(value) {
				return nil, fmt.Errorf("%w: subnet %q", ErrInvalidIdentifier, spec.Value)
			}
			return ParseSubnet(value)
		}
		if !govalidator.IsIP(value) {
			return nil, fmt.Errorf("%w: subnet %q", ErrInvalidIdentifier, spec.Value)
		}
		return NewSubnet(value, spec.Prefix)

	case TypeAll:
		if len(spec.All) == 0 {
			return nil, fmt.Errorf("%w: empty conjunction", ErrInvalidIdentifier)
		}
		all := make(All, 0, len(spec.All))
		for _, sub := range spec.All {
			id, err := ParseIdentifier(sub)
			if err != nil {
				return nil, err
			}
			all = append(all, id)
		}
		return all, nil
	}

	return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidIdentifier, spec.Type)
}

// ParseIdentifiers parses a list of specs, failing on the first invalid one.
func ParseIdentifiers(specs []IdentifierSpec) ([]Identifier, error) {
	ids := make([]Identifier, 0, len(specs))
	for i, spec := range specs {
		id, err := ParseIdentifier(spec)
		if err != nil {
			return nil, fmt.Errorf("identifier #%d: %w", i, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SpecOf is the inverse of ParseIdentifier.
func SpecOf(id Identifier) IdentifierSpec {
	switch v := id.(type) {
	case Name:
		return IdentifierSpec{Type: TypeName, Value: string(v)}
	case HardwareAddr:
		return IdentifierSpec{Type: TypeHardware, Value: string(v)}
	case Gateway:
		return IdentifierSpec{Type: TypeGateway, Value: string(v)}
	case Interface:
		return IdentifierSpec{Type: TypeInterface, Value: string(v)}
	case Overlay:
		return IdentifierSpec{Type: TypeOverlay, Value: string(v)}
	case Subnet:
		addr, prefix := v.Prefix()
		return IdentifierSpec{Type: TypeSubnet, Value: addr, Prefix: prefix}
	case All:
		spec := IdentifierSpec{Type: TypeAll}
		for _, sub := range v {
			if sub != nil {
				spec.All = append(spec.All, SpecOf(sub))
			}
		}
		return spec
	}
	return IdentifierSpec{}
}

func SpecsOf(ids []Identifier) []IdentifierSpec {
	specs := make([]IdentifierSpec, 0, len(ids))
	for _, id := range ids {
		if id != nil {
			specs = append(specs, SpecOf(id))
		}
	}
	return specs
}

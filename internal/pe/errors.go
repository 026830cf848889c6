package pe

import "github.com/pkg/errors"

// Kind classifies a parse failure so callers can decide without matching on messages.
type Kind int

// Failure kinds, in the order a pipeline can first hit them.
const (
	KindNone Kind = iota
	NotAPEFile
	TruncatedHeader
	UnsupportedFormat
	TruncatedSectionTable
	UnmappedRva
	TruncatedImportTable
	MalformedName
)

var (
	ErrNotPE                 = errors.New("not a PE file")
	ErrTruncatedHeader       = errors.New("truncated header")
	ErrUnsupportedFormat     = errors.New("unsupported optional header format")
	ErrTruncatedSectionTable = errors.New("truncated section table")
	ErrUnmappedRVA           = errors.New("RVA is not mapped by any section")
	ErrTruncatedImportTable  = errors.New("import directory table is truncated")
	ErrMalformedName         = errors.New("malformed module name")
)

var kindErrors = []struct {
	kind Kind
	err  error
}{
	{NotAPEFile, ErrNotPE},
	{TruncatedHeader, ErrTruncatedHeader},
	{UnsupportedFormat, ErrUnsupportedFormat},
	{TruncatedSectionTable, ErrTruncatedSectionTable},
	{UnmappedRva, ErrUnmappedRVA},
	{TruncatedImportTable, ErrTruncatedImportTable},
	{MalformedName, ErrMalformedName},
}

// KindOf returns the failure kind carried by err, or KindNone for nil and foreign errors.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, ke := range kindErrors {
		if errors.Is(err, ke.err) {
			return ke.kind
		}
	}
	return KindNone
}

// Structural reports whether the kind stops all further work on a file.
func (k Kind) Structural() bool {
	switch k {
	case NotAPEFile, TruncatedHeader, UnsupportedFormat, TruncatedSectionTable:
		return true
	}
	return false
}

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "None"
	case NotAPEFile:
		return "NotAPEFile"
	case TruncatedHeader:
		return "TruncatedHeader"
	case UnsupportedFormat:
		return "UnsupportedFormat"
	case TruncatedSectionTable:
		return "TruncatedSectionTable"
	case UnmappedRva:
		return "UnmappedRva"
	case TruncatedImportTable:
		return "TruncatedImportTable"
	case MalformedName:
		return "MalformedName"
	default:
		return "Unknown"
	}
}

// MarshalText lets reports carry kinds as their names.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

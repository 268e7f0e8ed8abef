package disk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// On-disk field sizes.
const (
	MaxPartitions = 4
	NameSize      = 16
	IDSize        = 4
	DateSize      = 10
	DateLayout    = "2006-01-02"
)

// Partition status bytes.
const (
	StatusUnmounted byte = '0'
	StatusMounted   byte = '1'
)

// Fit is a placement strategy, stored as a single byte.
type Fit byte

const (
	BestFit  Fit = 'b'
	FirstFit Fit = 'f'
	WorstFit Fit = 'w'
)

// ParseFit accepts "bf", "ff" or "wf".
func ParseFit(s string) (Fit, error) {
	switch strings.ToLower(s) {
	case "bf":
		return BestFit, nil
	case "ff":
		return FirstFit, nil
	case "wf":
		return WorstFit, nil
	}
	return 0, fmt.Errorf("fit must be bf, ff or wf, got %q", s)
}

func (f Fit) String() string {
	switch f {
	case BestFit:
		return "bf"
	case FirstFit:
		return "ff"
	case WorstFit:
		return "wf"
	}
	return string(rune(f))
}

// PartitionType is p (primary), e (extended) or l (logical).
type PartitionType byte

const (
	Primary  PartitionType = 'p'
	Extended PartitionType = 'e'
	Logical  PartitionType = 'l'
)

// ParsePartitionType accepts "p", "e" or "l".
func ParsePartitionType(s string) (PartitionType, error) {
	switch strings.ToLower(s) {
	case "p":
		return Primary, nil
	case "e":
		return Extended, nil
	case "l":
		return Logical, nil
	}
	return 0, fmt.Errorf("type must be p, e or l, got %q", s)
}

func (t PartitionType) String() string {
	return string(rune(t))
}

// Unit multipliers. Mkdisk accepts k and m; Fdisk also accepts b.
var units = map[string]int64{
	"b": 1,
	"k": 1024,
	"m": 1024 * 1024,
}

// maxImageSize is the largest size an int32 offset can address.
const maxImageSize = 1<<31 - 1

// SizeInBytes converts size in unit to bytes. allowed lists the units the
// caller accepts.
func SizeInBytes(size int, unit string, allowed ...string) (int64, error) {
	if size <= 0 {
		return 0, fmt.Errorf("size must be greater than 0, got %d", size)
	}
	unit = strings.ToLower(unit)
	ok := false
	for _, a := range allowed {
		if a == unit {
			ok = true
			break
		}
	}
	mult, known := units[unit]
	if !ok || !known {
		return 0, fmt.Errorf("unit must be one of %s, got %q", strings.Join(allowed, ", "), unit)
	}
	if int64(size) > maxImageSize/mult {
		return 0, fmt.Errorf("size %d%s exceeds the 2 GiB limit of the partition table", size, unit)
	}
	return int64(size) * mult, nil
}

// Partition is one of the four MBR partition slots. Layout is fixed so it
// can be read and written with encoding/binary.
type Partition struct {
	Status      [1]byte
	Type        [1]byte
	Fit         [1]byte
	Start       int32
	Size        int32
	Name        [NameSize]byte
	Correlative int32
	ID          [IDSize]byte
}

// MBR is the master boot record at offset 0 of a disk image.
type MBR struct {
	Size         int32
	CreationDate [DateSize]byte
	Signature    int32
	Fit          [1]byte
	Partitions   [MaxPartitions]Partition
}

// EBR is an extended boot record. EBRs form a chain inside the extended
// partition; Next is -1 on the last one.
type EBR struct {
	Mount [1]byte
	Fit   [1]byte
	Start int32
	Size  int32
	Next  int32
	Name  [NameSize]byte
}

// Encoded sizes.
var (
	MBRSize = int32(binary.Size(MBR{}))
	EBRSize = int32(binary.Size(EBR{}))
)

// Used reports whether the slot holds a partition.
func (p Partition) Used() bool {
	return p.Size > 0
}

// PartitionType returns the partition's type.
func (p Partition) PartitionType() PartitionType {
	return PartitionType(p.Type[0])
}

// NameString returns the name without trailing NULs.
func (p Partition) NameString() string {
	return cString(p.Name[:])
}

// IDString returns the mount ID, or "" if unmounted.
func (p Partition) IDString() string {
	return cString(p.ID[:])
}

// Mounted reports whether the status byte says mounted.
func (p Partition) Mounted() bool {
	return p.Status[0] == StatusMounted
}

// End returns the first byte after the partition.
func (p Partition) End() int32 {
	return p.Start + p.Size
}

// FitValue returns the disk's placement strategy.
func (m MBR) FitValue() Fit {
	return Fit(m.Fit[0])
}

// Date returns the creation date as YYYY-MM-DD.
func (m MBR) Date() string {
	return cString(m.CreationDate[:])
}

// Extended returns the extended partition and its slot, or -1.
func (m MBR) Extended() (Partition, int) {
	for i, p := range m.Partitions {
		if p.Used() && p.PartitionType() == Extended {
			return p, i
		}
	}
	return Partition{}, -1
}

// NameString returns the logical partition name without trailing NULs.
func (e EBR) NameString() string {
	return cString(e.Name[:])
}

// FitValue returns the logical partition's fit.
func (e EBR) FitValue() Fit {
	return Fit(e.Fit[0])
}

// End returns the first byte after the logical partition.
func (e EBR) End() int32 {
	return e.Start + e.Size
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func setField(dst []byte, s string) {
	clear(dst)
	copy(dst, s)
}

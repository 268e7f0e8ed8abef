package disk

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/mbrsim/internal/logging"
)

// DefaultIDPrefix starts every mount ID, e.g. "491a".
const DefaultIDPrefix = "49"

// MountedPartition is one entry of the session mount table.
type MountedPartition struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	ID     string `json:"id"`
	Status byte   `json:"status"`
	Slot   int    `json:"slot"`
}

// String formats the entry the way mount output lists it.
func (m MountedPartition) String() string {
	return fmt.Sprintf("Path: %s, Name: %s, ID: %s, Status: %c", m.Path, m.Name, m.ID, m.Status)
}

// Manager performs partition operations on disk image files and keeps the
// mount table. Mounts live only as long as the Manager. It is safe for
// concurrent use.
type Manager struct {
	mu      sync.Mutex
	prefix  string
	mounts  []MountedPartition
	letters map[string]byte // disk key -> letter
	now     func() time.Time
	sig     func() int32
}

// Option configures a Manager.
type Option func(*Manager)

// WithIDPrefix sets the mount ID prefix. It must be one or two characters so
// the ID fits the 4-byte field; other values are ignored.
func WithIDPrefix(prefix string) Option {
	return func(m *Manager) {
		if n := len(prefix); n > 0 && n <= IDSize-2 {
			m.prefix = prefix
		}
	}
}

// WithClock sets the time source used for MBR creation dates.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithSignature sets the MBR signature source.
func WithSignature(sig func() int32) Option {
	return func(m *Manager) {
		m.sig = sig
	}
}

// NewManager creates a Manager with an empty mount table.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		prefix:  DefaultIDPrefix,
		letters: make(map[string]byte),
		now:     time.Now,
		sig:     rand.Int32,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// IDPrefix returns the mount ID prefix.
func (m *Manager) IDPrefix() string {
	return m.prefix
}

// Mkdisk creates a disk image of size units at path, filled with zeros and
// carrying an empty partition table. fit is bf, ff or wf; unit is k or m.
// An existing file is replaced.
func (m *Manager) Mkdisk(size int, fit, unit, path string) error {
	const op = "mkdisk"

	f, err := ParseFit(fit)
	if err != nil {
		return validationErr(op, "%w", err)
	}
	n, err := SizeInBytes(size, unit, "k", "m")
	if err != nil {
		return validationErr(op, "%w", err)
	}
	if path == "" {
		return validationErr(op, "path is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hasMounts(path) {
		return conflictErr(op, path, errors.New("disk has mounted partitions"))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ioErr(op, path, err)
	}
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return ioErr(op, path, err)
	}
	defer file.Close()

	if err := file.Truncate(n); err != nil {
		return ioErr(op, path, err)
	}

	mbr := MBR{
		Size:      int32(n),
		Signature: m.sig(),
	}
	mbr.Fit[0] = byte(f)
	setField(mbr.CreationDate[:], m.now().Format(DateLayout))

	if err := writeObject(file, 0, &mbr); err != nil {
		return ioErr(op, path, err)
	}

	logging.Info("Disk created",
		zap.String("path", path),
		zap.Int64("bytes", n),
		zap.String("fit", f.String()),
	)
	return nil
}

// Rmdisk deletes the disk image at path. Mounts of the disk are dropped.
func (m *Manager) Rmdisk(path string) error {
	const op = "rmdisk"

	if path == "" {
		return validationErr(op, "path is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return notFoundErr(op, path, ErrDiskNotFound)
		}
		return ioErr(op, path, err)
	}

	key := diskKey(path)
	kept := m.mounts[:0]
	for _, mp := range m.mounts {
		if diskKey(mp.Path) != key {
			kept = append(kept, mp)
		}
	}
	m.mounts = kept

	logging.Info("Disk removed", zap.String("path", path))
	return nil
}

// Fdisk creates a partition. size is in unit (b, k or m), typ is p, e or l
// and fit is the new partition's fit. Primary and extended partitions are
// placed in a free gap chosen by the disk's own fit; logical partitions are
// appended to the EBR chain inside the extended partition.
func (m *Manager) Fdisk(size int, path, name, unit, typ, fit string) error {
	const op = "fdisk"

	n, err := SizeInBytes(size, unit, "b", "k", "m")
	if err != nil {
		return validationErr(op, "%w", err)
	}
	t, err := ParsePartitionType(typ)
	if err != nil {
		return validationErr(op, "%w", err)
	}
	f, err := ParseFit(fit)
	if err != nil {
		return validationErr(op, "%w", err)
	}
	if err := validateName(name); err != nil {
		return validationErr(op, "%w", err)
	}
	if path == "" {
		return validationErr(op, "path is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := openImage(op, path, os.O_RDWR)
	if err != nil {
		return err
	}
	defer file.Close()

	var mbr MBR
	if err := readObject(file, 0, &mbr); err != nil {
		return ioErr(op, path, err)
	}

	ext, _ := mbr.Extended()
	var chain []EBR
	if ext.Used() {
		if chain, err = readChain(file, path, ext); err != nil {
			return err
		}
	}
	if partitionNameTaken(mbr, chain, name) {
		return conflictErr(op, path, fmt.Errorf("a partition named %q already exists", name))
	}

	size32 := int32(n)
	if t == Logical {
		if !ext.Used() {
			return conflictErr(op, path, errors.New("cannot create a logical partition without an extended partition"))
		}
		return m.addLogical(file, path, ext, chain, size32, name, f)
	}

	used, slot := 0, -1
	for i, p := range mbr.Partitions {
		if p.Used() {
			used++
		} else if slot < 0 {
			slot = i
		}
	}
	if slot < 0 {
		return conflictErr(op, path, fmt.Errorf("the partition table already holds %d primary/extended partitions", MaxPartitions))
	}
	if t == Extended && ext.Used() {
		return conflictErr(op, path, errors.New("only one extended partition is allowed per disk"))
	}

	diskFit := mbr.FitValue()
	start, ok := place(freeGaps(mbr), size32, diskFit)
	if !ok {
		return conflictErr(op, path, fmt.Errorf("%w for %d bytes", ErrNoSpace, n))
	}

	p := Partition{
		Start:       start,
		Size:        size32,
		Correlative: int32(used + 1),
	}
	p.Status[0] = StatusUnmounted
	p.Type[0] = byte(t)
	p.Fit[0] = byte(f)
	setField(p.Name[:], name)
	mbr.Partitions[slot] = p

	if t == Extended {
		head := EBR{Start: start, Size: 0, Next: -1}
		head.Mount[0] = StatusUnmounted
		head.Fit[0] = byte(f)
		if err := writeObject(file, int64(start), &head); err != nil {
			return ioErr(op, path, err)
		}
	}

	if err := writeObject(file, 0, &mbr); err != nil {
		return ioErr(op, path, err)
	}

	logging.Info("Partition created",
		zap.String("path", path),
		zap.String("name", name),
		zap.String("type", t.String()),
		zap.Int32("start", start),
		zap.Int32("size", size32),
		zap.String("disk_fit", diskFit.String()),
	)
	return nil
}

func (m *Manager) addLogical(file *os.File, path string, ext Partition, chain []EBR, size int32, name string, fit Fit) error {
	const op = "fdisk"

	last := chain[len(chain)-1]
	lastPos := ext.Start
	if len(chain) > 1 {
		lastPos = chain[len(chain)-2].Next
	}

	// An empty head record is filled in place.
	inPlace := len(chain) == 1 && last.Size == 0
	pos := last.End()
	if inPlace {
		pos = ext.Start
	}
	start := pos + EBRSize
	if start > ext.End() || size > ext.End()-start {
		return conflictErr(op, path, fmt.Errorf("%w in extended partition for %d bytes", ErrNoSpace, size))
	}

	ebr := EBR{Start: start, Size: size, Next: -1}
	ebr.Mount[0] = StatusUnmounted
	ebr.Fit[0] = byte(fit)
	setField(ebr.Name[:], name)

	if !inPlace {
		last.Next = pos
		if err := writeObject(file, int64(lastPos), &last); err != nil {
			return ioErr(op, path, err)
		}
	}
	if err := writeObject(file, int64(pos), &ebr); err != nil {
		return ioErr(op, path, err)
	}

	logging.Info("Logical partition created",
		zap.String("path", path),
		zap.String("name", name),
		zap.Int32("ebr", pos),
		zap.Int32("start", start),
		zap.Int32("size", size),
	)
	return nil
}

// Mount mounts the primary partition name of the disk at path and returns
// its table entry. Disks get letters a, b, c... in the order they are first
// mounted; the ID is the prefix, the slot number and the disk letter.
func (m *Manager) Mount(path, name string) (MountedPartition, error) {
	const op = "mount"

	if path == "" {
		return MountedPartition{}, validationErr(op, "path is required")
	}
	if name == "" {
		return MountedPartition{}, validationErr(op, "name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := openImage(op, path, os.O_RDWR)
	if err != nil {
		return MountedPartition{}, err
	}
	defer file.Close()

	var mbr MBR
	if err := readObject(file, 0, &mbr); err != nil {
		return MountedPartition{}, ioErr(op, path, err)
	}

	slot := -1
	for i, p := range mbr.Partitions {
		if p.Used() && p.NameString() == name {
			if p.PartitionType() != Primary {
				return MountedPartition{}, validationErr(op, "only primary partitions can be mounted, %q is %s", name, p.PartitionType())
			}
			slot = i
			break
		}
	}
	if slot < 0 {
		if ext, _ := mbr.Extended(); ext.Used() {
			chain, _ := readChain(file, path, ext)
			for _, e := range chain {
				if e.Size > 0 && e.NameString() == name {
					return MountedPartition{}, validationErr(op, "only primary partitions can be mounted, %q is logical", name)
				}
			}
		}
		return MountedPartition{}, notFoundErr(op, path, fmt.Errorf("no partition named %q", name))
	}

	key := diskKey(path)
	for _, mp := range m.mounts {
		if diskKey(mp.Path) == key && mp.Slot == slot {
			return MountedPartition{}, conflictErr(op, path, fmt.Errorf("%w as %s", ErrAlreadyMounted, mp.ID))
		}
	}

	letter, ok := m.letters[key]
	if !ok {
		if len(m.letters) >= 26 {
			return MountedPartition{}, conflictErr(op, path, errors.New("no disk letters left"))
		}
		letter = byte('a' + len(m.letters))
		m.letters[key] = letter
	}
	id := m.prefix + strconv.Itoa(slot+1) + string(letter)

	p := &mbr.Partitions[slot]
	p.Status[0] = StatusMounted
	setField(p.ID[:], id)
	if err := writeObject(file, 0, &mbr); err != nil {
		return MountedPartition{}, ioErr(op, path, err)
	}

	mp := MountedPartition{Path: path, Name: name, ID: id, Status: StatusMounted, Slot: slot}
	m.mounts = append(m.mounts, mp)

	logging.Info("Partition mounted", zap.String("path", path), zap.String("name", name), zap.String("id", id))
	return mp, nil
}

// Unmount unmounts the partition with the given ID.
func (m *Manager) Unmount(id string) error {
	const op = "unmount"

	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(id)
	if i < 0 {
		return notFoundErr(op, "", fmt.Errorf("%w: %s", ErrNotMounted, id))
	}
	mp := m.mounts[i]
	if err := resetPartitions(mp.Path, mp.Slot); err != nil {
		return err
	}
	m.mounts = append(m.mounts[:i], m.mounts[i+1:]...)

	logging.Info("Partition unmounted", zap.String("id", mp.ID), zap.String("path", mp.Path))
	return nil
}

// Clean unmounts everything: each mounted disk gets status and ID reset on
// every partition, and the table and disk letters are cleared. Disks that
// cannot be updated are reported in the returned error.
func (m *Manager) Clean() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	seen := make(map[string]bool)
	for _, mp := range m.mounts {
		key := diskKey(mp.Path)
		if seen[key] {
			continue
		}
		seen[key] = true
		if err := resetPartitions(mp.Path, -1); err != nil {
			logging.Warn("Failed to unmount disk", zap.String("path", mp.Path), zap.Error(err))
			errs = append(errs, err)
		}
	}

	logging.Info("Mount table cleared", zap.Int("partitions", len(m.mounts)), zap.Int("disks", len(seen)))
	m.mounts = nil
	m.letters = make(map[string]byte)
	return errors.Join(errs...)
}

// Mounted returns a copy of the mount table in mount order.
func (m *Manager) Mounted() []MountedPartition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MountedPartition(nil), m.mounts...)
}

// Lookup returns the mounted partition with the given ID. IDs compare
// case-insensitively.
func (m *Manager) Lookup(id string) (MountedPartition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i := m.indexOf(id); i >= 0 {
		return m.mounts[i], nil
	}
	return MountedPartition{}, notFoundErr("lookup", "", fmt.Errorf("%w: %s", ErrNotMounted, id))
}

// FormatMounted lists the mount table one entry per line.
func (m *Manager) FormatMounted() string {
	return FormatMounts(m.Mounted())
}

// FormatMounts lists mounts one entry per line, the way mount output shows
// them.
func FormatMounts(mounts []MountedPartition) string {
	if len(mounts) == 0 {
		return "No mounted partitions."
	}
	lines := make([]string, len(mounts))
	for i, mp := range mounts {
		lines[i] = mp.String()
	}
	return strings.Join(lines, "\n")
}

func (m *Manager) indexOf(id string) int {
	for i, mp := range m.mounts {
		if strings.EqualFold(mp.ID, id) {
			return i
		}
	}
	return -1
}

func (m *Manager) hasMounts(path string) bool {
	key := diskKey(path)
	for _, mp := range m.mounts {
		if diskKey(mp.Path) == key {
			return true
		}
	}
	return false
}

// resetPartitions marks slot (or every used slot when slot < 0) unmounted.
func resetPartitions(path string, slot int) error {
	const op = "unmount"

	file, err := openImage(op, path, os.O_RDWR)
	if err != nil {
		return err
	}
	defer file.Close()

	var mbr MBR
	if err := readObject(file, 0, &mbr); err != nil {
		return ioErr(op, path, err)
	}
	for i := range mbr.Partitions {
		p := &mbr.Partitions[i]
		if !p.Used() || (slot >= 0 && i != slot) {
			continue
		}
		p.Status[0] = StatusUnmounted
		clear(p.ID[:])
	}
	if err := writeObject(file, 0, &mbr); err != nil {
		return ioErr(op, path, err)
	}
	return nil
}

func partitionNameTaken(mbr MBR, chain []EBR, name string) bool {
	for _, p := range mbr.Partitions {
		if p.Used() && p.NameString() == name {
			return true
		}
	}
	for _, e := range chain {
		if e.Size > 0 && e.NameString() == name {
			return true
		}
	}
	return false
}

func validateName(name string) error {
	switch {
	case name == "":
		return errors.New("name is required")
	case len(name) > NameSize:
		return fmt.Errorf("name %q is longer than %d bytes", name, NameSize)
	case strings.IndexByte(name, 0) >= 0:
		return errors.New("name contains a NUL byte")
	}
	return nil
}

// diskKey identifies a disk independent of how its path was spelled.
func diskKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

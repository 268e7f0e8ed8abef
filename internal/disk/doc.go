// Package disk simulates MBR partitioning on disk image files.
//
// A disk image is a zero-filled file with an MBR at offset 0. The MBR holds
// up to four partitions, at most one of them extended. Logical partitions
// live inside the extended partition as a chain of EBRs: the head EBR sits
// at the start of the extended partition and each record points at the
// next one.
//
// All records are stored little-endian with fixed-size fields:
//
//	MBR  size(4) date(10) signature(4) fit(1) partitions(4 x 34)  = 159 bytes
//	EBR  mount(1) fit(1) start(4) size(4) next(4) name(16)        =  30 bytes
//
// Manager runs mkdisk, rmdisk, fdisk, mount and unmount against images and
// keeps the session's mount table. Mount IDs are the ID prefix, the
// partition slot and a per-disk letter, e.g. 491a.
//
// Errors are *Error values carrying an ErrorKind, so callers can tell bad
// input from conflicts, missing disks and I/O failures:
//
//	if disk.KindOf(err) == disk.KindValidation {
//	    ...
//	}
package disk

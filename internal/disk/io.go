package disk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/muurk/mbrsim/internal/logging"
)

// maxChain bounds EBR chain walks on corrupt images.
const maxChain = 1 << 12

func readObject(r io.ReaderAt, off int64, v any) error {
	return binary.Read(io.NewSectionReader(r, off, int64(binary.Size(v))), binary.LittleEndian, v)
}

func writeObject(w io.WriterAt, off int64, v any) error {
	buf, err := binary.Append(nil, binary.LittleEndian, v)
	if err != nil {
		return err
	}
	logging.LogRawBytes(fmt.Sprintf("write %T", v), off, buf)
	_, err = io.NewOffsetWriter(w, off).Write(buf)
	return err
}

func openImage(op, path string, flag int) (*os.File, error) {
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, notFoundErr(op, path, ErrDiskNotFound)
		}
		return nil, ioErr(op, path, err)
	}
	return f, nil
}

// ReadMBR reads the MBR of the disk image at path.
func ReadMBR(path string) (MBR, error) {
	f, err := openImage("read mbr", path, os.O_RDONLY)
	if err != nil {
		return MBR{}, err
	}
	defer f.Close()

	var mbr MBR
	if err := readObject(f, 0, &mbr); err != nil {
		return MBR{}, ioErr("read mbr", path, err)
	}
	return mbr, nil
}

// ReadEBRs returns the EBR chain of the extended partition ext, starting
// with the head record (size 0 until the first logical partition is added).
func ReadEBRs(path string, ext Partition) ([]EBR, error) {
	f, err := openImage("read ebr", path, os.O_RDONLY)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readChain(f, path, ext)
}

func readChain(r io.ReaderAt, path string, ext Partition) ([]EBR, error) {
	var chain []EBR
	pos := ext.Start
	for range maxChain {
		var ebr EBR
		if err := readObject(r, int64(pos), &ebr); err != nil {
			return chain, ioErr("read ebr", path, fmt.Errorf("at offset %d: %w", pos, err))
		}
		chain = append(chain, ebr)
		if ebr.Next == -1 {
			return chain, nil
		}
		if ebr.Next <= pos || ebr.Next >= ext.End() {
			return chain, ioErr("read ebr", path, fmt.Errorf("corrupt chain: next %d from offset %d", ebr.Next, pos))
		}
		pos = ebr.Next
	}
	return chain, ioErr("read ebr", path, fmt.Errorf("chain longer than %d records", maxChain))
}
